// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import "testing"

func TestParseUsedMemory(t *testing.T) {
	tests := []struct {
		name string
		info string
		want int64
	}{
		{
			"typical INFO memory section",
			"# Memory\r\nused_memory:1048576\r\nused_memory_human:1.00M\r\n",
			1048576,
		},
		{"field absent", "# Memory\r\nmaxmemory:0\r\n", 0},
		{"unparseable value", "used_memory:lots\r\n", 0},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseUsedMemory(tt.info); got != tt.want {
				t.Errorf("parseUsedMemory = %d, want %d", got, tt.want)
			}
		})
	}
}
