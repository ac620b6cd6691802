package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type validatedSample struct {
	Addr    string `validate:"required"`
	Workers int    `validate:"min=1,max=64"`
	Mode    string `validate:"oneof=memory postgres"`
}

// TestValidator 测试配置验证
func TestValidator(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		cfg     any
		wantErr error
		msg     string
	}{
		{name: "valid", cfg: &validatedSample{Addr: ":8080", Workers: 4, Mode: "memory"}},
		{name: "nil", cfg: nil, wantErr: ErrNilConfig},
		{
			name:    "missing addr",
			cfg:     &validatedSample{Workers: 4, Mode: "memory"},
			wantErr: ErrValidationFailed,
			msg:     "field 'validatedSample.Addr' is required",
		},
		{
			name:    "too many workers",
			cfg:     &validatedSample{Addr: ":1", Workers: 100, Mode: "memory"},
			wantErr: ErrValidationFailed,
			msg:     "must be at most 64",
		},
		{
			name:    "bad mode",
			cfg:     &validatedSample{Addr: ":1", Workers: 1, Mode: "mysql"},
			wantErr: ErrValidationFailed,
			msg:     "must be one of [memory postgres]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}
