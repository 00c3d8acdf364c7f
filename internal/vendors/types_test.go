package vendors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefCode13(t *testing.T) {
	assert.Equal(t, "3400935761439", RefCode13("3400935761439"))
	assert.Equal(t, "3400935761439", RefCode13("3400-935761-439"))
	assert.Equal(t, "3400935761439", RefCode13("3400.935761 439"))
	assert.Equal(t, "", RefCode13("340093576143"), "12 digits is not a code")
	assert.Equal(t, "", RefCode13("34009357614391"), "14 digits is not a code")
	assert.Equal(t, "", RefCode13("3400X35761439"), "letters invalidate the whole code")
	assert.Equal(t, "", RefCode13(""))
}

func TestChannelMapStep(t *testing.T) {
	m := ChannelMap{Steps: map[string]int16{"FAX": 3}, Default: 1}
	assert.Equal(t, int16(3), m.Step("fax"))
	assert.Equal(t, int16(3), m.Step("  FAX "))
	assert.Equal(t, int16(1), m.Step("TELEGRAM"))
	assert.Equal(t, int16(1), m.Step(""))
}

func TestDeriveLineQuantities(t *testing.T) {
	exp, out := DeriveLineQuantities(10, 4, nil, nil)
	assert.Equal(t, int16(10), exp)
	assert.Equal(t, int16(6), out)

	// over-delivery never yields negative outstanding
	_, out = DeriveLineQuantities(4, 10, nil, nil)
	assert.Equal(t, int16(0), out)

	e, r := int16(8), int16(5)
	exp, out = DeriveLineQuantities(10, 4, &e, &r)
	assert.Equal(t, int16(8), exp)
	assert.Equal(t, int16(5), out)
}

func TestRegistry(t *testing.T) {
	Register(Bundle{Name: "testvendor"})
	b, ok := Get("testvendor")
	require.True(t, ok)
	assert.Equal(t, "testvendor", b.Name)

	_, ok = Get("nobody")
	assert.False(t, ok)
}
