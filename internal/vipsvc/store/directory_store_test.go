package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePoolTable(t *testing.T) {
	valid := []string{
		"vip1",
		"vip_demo",
		"a",
		"pool_store_42",
		strings.Repeat("a", 63),
	}
	for _, name := range valid {
		assert.NoError(t, ValidatePoolTable(name), "name %q", name)
	}

	invalid := []string{
		"",
		"Vip1",
		"1vip",
		"vip-1",
		"vip demo",
		"vip;drop table stores",
		`vip"`,
		strings.Repeat("a", 64),
	}
	for _, name := range invalid {
		err := ValidatePoolTable(name)
		require.ErrorIs(t, err, ErrBadPoolTable, "name %q", name)
	}
}
