package filesystem

import (
	"errors"
	"testing"
)

func Test_parseMode(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		want    openMode
		wantErr bool
	}{
		{
			name: "r is read only",
			mode: "r",
			want: openMode{read: true},
		},
		{
			name: "w truncates and creates",
			mode: "w",
			want: openMode{write: true, truncate: true, createIfNotExists: true},
		},
		{
			name: "a appends and creates",
			mode: "a",
			want: openMode{write: true, append: true, createIfNotExists: true},
		},
		{
			name: "r+ reads and writes",
			mode: "r+",
			want: openMode{read: true, write: true},
		},
		{
			name: "w+ reads, writes, truncates and creates",
			mode: "w+",
			want: openMode{read: true, write: true, truncate: true, createIfNotExists: true},
		},
		{
			name: "a+ reads, appends and creates",
			mode: "a+",
			want: openMode{read: true, write: true, append: true, createIfNotExists: true},
		},
		{
			name:    "unknown mode is rejected",
			mode:    "rw",
			wantErr: true,
		},
		{
			name:    "empty mode is rejected",
			mode:    "",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMode(tt.mode)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseMode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				if !errors.Is(err, ErrBadMode) {
					t.Errorf("parseMode() error = %v, want ErrBadMode", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("parseMode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
