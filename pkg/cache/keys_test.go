package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoardKeys(t *testing.T) {
	assert.Equal(t, "grades:board:s1:2024-2025", BoardKey("s1", "2024-2025"))
	assert.Equal(t, "grades:board:s1:*", StudentBoardsPattern("s1"))
}
