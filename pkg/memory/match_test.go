package memory_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sribot/pkg/memory"
	"github.com/m-mizutani/sribot/pkg/model"
)

func TestMatchIdentifier(t *testing.T) {
	mem := &model.Memory{
		ID:   model.MemoryID("3f2a9c1e-0b7d-4c55-9e1a-8d6f2b7c4a10"),
		Text: "Alamat: Jakarta Selatan",
	}

	testCases := []struct {
		name       string
		identifier string
		want       bool
	}{
		{"text lower", "alamat", true},
		{"text upper", "JAKARTA", true},
		{"id prefix", "3f2a9c1e", true},
		{"id infix", "4C55", true},
		{"unrelated", "telepon", false},
		{"empty", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Equal(t, memory.MatchIdentifier(mem, tc.identifier), tc.want)
		})
	}
}

func TestReplaceFragment(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		old, new string
		want     string
		ok       bool
	}{
		{"single", "Alamat saya Jakarta Selatan", "Jakarta", "Bekasi", "Alamat saya Bekasi Selatan", true},
		{"every occurrence", "a-a-a", "a", "b", "b-b-b", true},
		{"case sensitive", "Alamat saya Jakarta", "jakarta", "Bekasi", "Alamat saya Jakarta", false},
		{"empty old", "Nama: Widya", "", "x", "Nama: Widya", false},
		{"to empty", "Widya", "Widya", "", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := memory.ReplaceFragment(tc.text, tc.old, tc.new)
			gt.Equal(t, got, tc.want)
			gt.Equal(t, ok, tc.ok)
		})
	}
}
