package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContactFilter(t *testing.T) {
	gate := NewContactFilter()

	assert.True(t, gate.Approve("Is the bike still available?"))
	assert.True(t, gate.Approve("I can pick it up tomorrow at 5"))

	assert.False(t, gate.Approve("call me on 08012345678"))
	assert.False(t, gate.Approve("my number is +234 801 234 5678"))
	assert.False(t, gate.Approve("mail me at buyer@example.com"))
	assert.False(t, gate.Approve("add me on WhatsApp"))
	assert.False(t, gate.Approve("I'm on telegram"))
}
