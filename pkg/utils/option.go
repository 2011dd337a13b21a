// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package utils

import (
	"fmt"
	"strconv"
)

// Option is a loosely typed bag of provider options, keyed by dotted names
// such as "listen.language".
type Option map[string]interface{}

// GetString returns the value for key as a string.
func (o Option) GetString(key string) (string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return "", fmt.Errorf("option %s not found", key)
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case fmt.Stringer:
		return val.String(), nil
	case bool, int, int32, int64, float32, float64, uint, uint32, uint64:
		return fmt.Sprintf("%v", val), nil
	}
	return "", fmt.Errorf("option %s is %T, not a string", key, v)
}

// GetBool returns the value for key as a bool. String values are parsed.
func (o Option) GetBool(key string) (bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return false, fmt.Errorf("option %s not found", key)
	}
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		return strconv.ParseBool(val)
	}
	return false, fmt.Errorf("option %s is %T, not a bool", key, v)
}

// GetInt returns the value for key as an int. Float and string values are converted.
func (o Option) GetInt(key string) (int, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("option %s not found", key)
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int32:
		return int(val), nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case float32:
		return int(val), nil
	case string:
		return strconv.Atoi(val)
	}
	return 0, fmt.Errorf("option %s is %T, not an int", key, v)
}
