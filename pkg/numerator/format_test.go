package numerator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	period := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cfg  Config
		num  int64
		want string
	}{
		{"default", DefaultConfig("TR"), 1, "TR-2026-00001"},
		{"no year", Config{Prefix: "ADJ", PadWidth: 3}, 42, "ADJ-042"},
		{"zero pad defaults to five", Config{Prefix: "GR"}, 7, "GR-00007"},
		{"overflow keeps digits", DefaultConfig("GI"), 1234567, "GI-2026-1234567"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.cfg, period, tt.num))
		})
	}
}

func TestKey(t *testing.T) {
	period := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "TR_2026", Key(DefaultConfig("TR"), period))
	assert.Equal(t, "TR_2026_03", Key(Config{Prefix: "TR", ResetPeriod: ResetMonth}, period))
	assert.Equal(t, "TR", Key(Config{Prefix: "TR", ResetPeriod: ResetNever}, period))
}

func TestParse(t *testing.T) {
	assert.Equal(t, int64(1), Parse("TR-2026-00001"))
	assert.Equal(t, int64(42), Parse("ADJ-042"))
	assert.Equal(t, int64(-1), Parse("garbage"))
	assert.Equal(t, int64(-1), Parse("TR-"))
	assert.Equal(t, int64(-1), Parse("TR-abc"))
}
