// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/livyctl/lib/fault"
)

// Config holds the creation parameters for a remote session. The
// recognized keys are those the job server's create call accepts;
// anything else is carried through Extra and sent verbatim.
//
// The zero value is an empty configuration.
type Config struct {
	Kind                     Kind              `json:"kind,omitempty"`
	ProxyUser                string            `json:"proxyUser,omitempty"`
	Jars                     []string          `json:"jars,omitempty"`
	PyFiles                  []string          `json:"pyFiles,omitempty"`
	Files                    []string          `json:"files,omitempty"`
	Archives                 []string          `json:"archives,omitempty"`
	DriverMemory             string            `json:"driverMemory,omitempty"`
	DriverCores              int               `json:"driverCores,omitempty"`
	ExecutorMemory           string            `json:"executorMemory,omitempty"`
	ExecutorCores            int               `json:"executorCores,omitempty"`
	NumExecutors             int               `json:"numExecutors,omitempty"`
	Queue                    string            `json:"queue,omitempty"`
	Name                     string            `json:"name,omitempty"`
	Conf                     map[string]string `json:"conf,omitempty"`
	HeartbeatTimeoutInSecond int               `json:"heartbeatTimeoutInSecond,omitempty"`

	// Extra holds keys the controller does not interpret.
	Extra map[string]any `json:"-" cbor:"extra,omitempty"`
}

// ParseConfig decodes a JSON object of session settings. Comments and
// trailing commas are accepted. Recognized keys are type-checked;
// a mismatch is a usage fault naming the key.
func ParseConfig(data []byte) (Config, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return Config{}, fault.Usage("session settings must be a JSON object: %v", err)
	}
	return FromMap(raw)
}

// FromMap builds a Config from decoded JSON. Numbers may be json.Number
// or any Go numeric type.
func FromMap(raw map[string]any) (Config, error) {
	var config Config
	for _, key := range sortedKeys(raw) {
		value := raw[key]
		var err error
		switch key {
		case "kind":
			var kind string
			if kind, err = asString(key, value); err == nil {
				config.Kind = Kind(kind)
				if !config.Kind.Valid() {
					err = fault.Usage("session setting %q: unknown kind %q", key, kind)
				}
			}
		case "proxyUser":
			config.ProxyUser, err = asString(key, value)
		case "jars":
			config.Jars, err = asStrings(key, value)
		case "pyFiles":
			config.PyFiles, err = asStrings(key, value)
		case "files":
			config.Files, err = asStrings(key, value)
		case "archives":
			config.Archives, err = asStrings(key, value)
		case "driverMemory":
			config.DriverMemory, err = asString(key, value)
		case "driverCores":
			config.DriverCores, err = asCount(key, value)
		case "executorMemory":
			config.ExecutorMemory, err = asString(key, value)
		case "executorCores":
			config.ExecutorCores, err = asCount(key, value)
		case "numExecutors":
			config.NumExecutors, err = asCount(key, value)
		case "queue":
			config.Queue, err = asString(key, value)
		case "name":
			config.Name, err = asString(key, value)
		case "conf":
			config.Conf, err = asConf(key, value)
		case "heartbeatTimeoutInSecond":
			config.HeartbeatTimeoutInSecond, err = asCount(key, value)
		default:
			if config.Extra == nil {
				config.Extra = make(map[string]any)
			}
			config.Extra[key] = normalizeNumber(value)
		}
		if err != nil {
			return Config{}, err
		}
	}
	return config, nil
}

// Merge returns a new Config where every non-zero field of overrides
// replaces the receiver's value. Conf and Extra merge key-wise. Neither
// input is modified.
func (c Config) Merge(overrides Config) Config {
	merged := c.Clone()
	if overrides.Kind != "" {
		merged.Kind = overrides.Kind
	}
	mergeString(&merged.ProxyUser, overrides.ProxyUser)
	mergeStrings(&merged.Jars, overrides.Jars)
	mergeStrings(&merged.PyFiles, overrides.PyFiles)
	mergeStrings(&merged.Files, overrides.Files)
	mergeStrings(&merged.Archives, overrides.Archives)
	mergeString(&merged.DriverMemory, overrides.DriverMemory)
	mergeCount(&merged.DriverCores, overrides.DriverCores)
	mergeString(&merged.ExecutorMemory, overrides.ExecutorMemory)
	mergeCount(&merged.ExecutorCores, overrides.ExecutorCores)
	mergeCount(&merged.NumExecutors, overrides.NumExecutors)
	mergeString(&merged.Queue, overrides.Queue)
	mergeString(&merged.Name, overrides.Name)
	mergeCount(&merged.HeartbeatTimeoutInSecond, overrides.HeartbeatTimeoutInSecond)
	if len(overrides.Conf) > 0 {
		if merged.Conf == nil {
			merged.Conf = make(map[string]string, len(overrides.Conf))
		}
		maps.Copy(merged.Conf, overrides.Conf)
	}
	if len(overrides.Extra) > 0 {
		if merged.Extra == nil {
			merged.Extra = make(map[string]any, len(overrides.Extra))
		}
		maps.Copy(merged.Extra, overrides.Extra)
	}
	return merged
}

// WithKind returns a copy of c with Kind set.
func (c Config) WithKind(kind Kind) Config {
	clone := c.Clone()
	clone.Kind = kind
	return clone
}

// Clone returns a deep copy. Nil slices and maps stay nil.
func (c Config) Clone() Config {
	clone := c
	clone.Jars = slices.Clone(c.Jars)
	clone.PyFiles = slices.Clone(c.PyFiles)
	clone.Files = slices.Clone(c.Files)
	clone.Archives = slices.Clone(c.Archives)
	clone.Conf = maps.Clone(c.Conf)
	clone.Extra = maps.Clone(c.Extra)
	return clone
}

// IsZero reports whether no setting is present.
func (c Config) IsZero() bool {
	body, err := c.Body()
	return err == nil && len(body) == 0
}

// Body returns the settings as the JSON object sent on session
// creation. Extra keys are included at the top level. An Extra value
// that JSON cannot encode is a usage fault.
func (c Config) Body() (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fault.Usage("encoding session settings: %v", err)
	}
	body := make(map[string]any)
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		return nil, fault.Usage("encoding session settings: %v", err)
	}
	for key, value := range c.Extra {
		body[key] = value
	}
	return body, nil
}

// MarshalJSON encodes the Body form so Extra keys appear inline.
func (c Config) MarshalJSON() ([]byte, error) {
	type plain Config
	data, err := json.Marshal(plain(c))
	if err != nil || len(c.Extra) == 0 {
		return data, err
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	for key, value := range c.Extra {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encoding session setting %q: %w", key, err)
		}
		body[key] = encoded
	}
	return json.Marshal(body)
}

func sortedKeys(raw map[string]any) []string {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func asString(key string, value any) (string, error) {
	text, ok := value.(string)
	if !ok {
		return "", fault.Usage("session setting %q must be a string, got %s", key, describe(value))
	}
	return text, nil
}

func asStrings(key string, value any) ([]string, error) {
	switch items := value.(type) {
	case []string:
		return slices.Clone(items), nil
	case []any:
		result := make([]string, 0, len(items))
		for index, item := range items {
			text, ok := item.(string)
			if !ok {
				return nil, fault.Usage("session setting %q[%d] must be a string, got %s", key, index, describe(item))
			}
			result = append(result, text)
		}
		return result, nil
	}
	return nil, fault.Usage("session setting %q must be a list of strings, got %s", key, describe(value))
}

func asCount(key string, value any) (int, error) {
	var number int64
	switch typed := value.(type) {
	case json.Number:
		parsed, err := strconv.ParseInt(typed.String(), 10, 64)
		if err != nil {
			return 0, fault.Usage("session setting %q must be a whole number, got %s", key, typed)
		}
		number = parsed
	case int:
		number = int64(typed)
	case int64:
		number = typed
	case uint64:
		number = int64(typed)
	case float64:
		if typed != float64(int64(typed)) {
			return 0, fault.Usage("session setting %q must be a whole number, got %v", key, typed)
		}
		number = int64(typed)
	default:
		return 0, fault.Usage("session setting %q must be a number, got %s", key, describe(value))
	}
	if number < 0 {
		return 0, fault.Usage("session setting %q must not be negative, got %d", key, number)
	}
	return int(number), nil
}

func asConf(key string, value any) (map[string]string, error) {
	switch typed := value.(type) {
	case map[string]string:
		return maps.Clone(typed), nil
	case map[string]any:
		conf := make(map[string]string, len(typed))
		for name, item := range typed {
			switch scalar := item.(type) {
			case string:
				conf[name] = scalar
			case json.Number:
				conf[name] = scalar.String()
			case bool:
				conf[name] = strconv.FormatBool(scalar)
			case int, int64, uint64, float64:
				conf[name] = fmt.Sprint(scalar)
			default:
				return nil, fault.Usage("session setting %q: value for %q must be a scalar, got %s", key, name, describe(item))
			}
		}
		return conf, nil
	}
	return nil, fault.Usage("session setting %q must be an object, got %s", key, describe(value))
}

// normalizeNumber turns json.Number into int64 or float64 so Extra
// values compare and encode predictably.
func normalizeNumber(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if integer, err := typed.Int64(); err == nil {
			return integer
		}
		if float, err := typed.Float64(); err == nil {
			return float
		}
		return typed.String()
	case []any:
		normalized := make([]any, len(typed))
		for index, item := range typed {
			normalized[index] = normalizeNumber(item)
		}
		return normalized
	case map[string]any:
		normalized := make(map[string]any, len(typed))
		for key, item := range typed {
			normalized[key] = normalizeNumber(item)
		}
		return normalized
	}
	return value
}

func describe(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, int, int64, uint64, float64:
		return "a number"
	case []any, []string:
		return "a list"
	case map[string]any, map[string]string:
		return "an object"
	}
	return fmt.Sprintf("%T", value)
}

func mergeString(target *string, override string) {
	if override != "" {
		*target = override
	}
}

func mergeStrings(target *[]string, override []string) {
	if len(override) > 0 {
		*target = slices.Clone(override)
	}
}

func mergeCount(target *int, override int) {
	if override != 0 {
		*target = override
	}
}
