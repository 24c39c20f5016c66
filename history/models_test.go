package history_test

import (
	"testing"

	"github.com/xraph/entitle/history"
)

func TestListOptsNormalize(t *testing.T) {
	tests := []struct {
		in   history.ListOpts
		want history.ListOpts
	}{
		{history.ListOpts{}, history.ListOpts{Limit: 20}},
		{history.ListOpts{Limit: 5, Offset: 10}, history.ListOpts{Limit: 5, Offset: 10}},
		{history.ListOpts{Limit: 500}, history.ListOpts{Limit: 100}},
		{history.ListOpts{Limit: -1, Offset: -4}, history.ListOpts{Limit: 20}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
