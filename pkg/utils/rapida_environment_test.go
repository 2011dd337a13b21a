// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvironmentStr(t *testing.T) {
	tests := []struct {
		in   string
		want RapidaEnvironment
	}{
		{"production", PRODUCTION},
		{"PRODUCTION", PRODUCTION},
		{" production\n", PRODUCTION},
		{"development", DEVELOPMENT},
		{"staging", DEVELOPMENT},
		{"", DEVELOPMENT},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := FromEnvironmentStr(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, string(tt.want), got.Get())
		})
	}
}
