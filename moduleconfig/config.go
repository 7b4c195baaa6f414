// config.go implements the flat key=value configuration grammar.

// Package moduleconfig parses the flat comma-separated configuration string
// of a module into the module's own parameters and the interleaved input and
// output pin parameter groups.
package moduleconfig

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/xaionaro-go/mediamodule/logger"
)

// The two delimiter keys: each occurrence opens a new pin bucket, and the
// delimiter token itself belongs to the bucket it opens.
const (
	KeyInType  = "in_type"
	KeyOutType = "out_type"
)

// ErrNoTarget is the fatal error for a token that belongs to no bucket.
// The parser always starts with the module bucket active, so this is
// reachable only if that bucket is explicitly un-targeted.
var ErrNoTarget = errors.New("invalid configuration: the parameter does not belong to any bucket")

// Configuration is the structured form of a module configuration string:
// the module's own parameters plus one comma-joined substring per pin, in
// declaration order.
type Configuration struct {
	Module  string
	Inputs  []string
	Outputs []string
}

// Parse tokenizes a flat `k=v,k=v,...` string into module/input/output
// buckets. Malformed tokens (not exactly `k=v`) are skipped with an error
// log; empty tokens are skipped with an info log.
func Parse(ctx context.Context, config string) (_ret Configuration, _err error) {
	logger.Tracef(ctx, "Parse('%s')", config)
	defer func() { logger.Tracef(ctx, "/Parse('%s'): %#+v %v", config, _ret, _err) }()

	var cfg Configuration
	appendToken := func(bucket *string, token string) {
		if *bucket != "" {
			*bucket += ","
		}
		*bucket += token
	}

	currentPin := &cfg.Module
	for _, token := range strings.Split(config, ",") {
		if token == "" {
			logger.Infof(ctx, "empty token detected")
			continue
		}

		params := strings.Split(token, "=")
		if len(params) != 2 {
			logger.Errorf(ctx, "invalid parameter format: '%s' is not in format '<param>=<value>'", token)
			continue
		}

		// The configuration is interleaved between parameters for input and
		// output pins: a delimiter key switches the active bucket.
		switch params[0] {
		case KeyOutType:
			cfg.Outputs = append(cfg.Outputs, "")
			currentPin = &cfg.Outputs[len(cfg.Outputs)-1]
		case KeyInType:
			cfg.Inputs = append(cfg.Inputs, "")
			currentPin = &cfg.Inputs[len(cfg.Inputs)-1]
		}

		if currentPin == nil {
			return cfg, ErrNoTarget
		}
		appendToken(currentPin, token)
	}

	return cfg, nil
}

// Param is one key=value pair of a pin or module bucket.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list, preserving the comma order of the
// original bucket substring.
type Params []Param

// ParseParams splits a bucket substring into its ordered key/value pairs.
// Tokens that survived Parse are well-formed already; anything malformed
// here is skipped silently.
func ParseParams(bucket string) Params {
	var ret Params
	for _, token := range strings.Split(bucket, ",") {
		if token == "" {
			continue
		}
		params := strings.SplitN(token, "=", 2)
		if len(params) != 2 {
			continue
		}
		ret = append(ret, Param{Key: params[0], Value: params[1]})
	}
	return ret
}

// Get returns the value of the first parameter with the given key.
func (p Params) Get(key string) (string, bool) {
	for _, item := range p {
		if item.Key == key {
			return item.Value, true
		}
	}
	return "", false
}

// GetInt returns the value of the first parameter with the given key as an
// integer, or defaultValue if the key is absent or not an integer.
func (p Params) GetInt(key string, defaultValue int) int {
	v, ok := p.Get(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func (p Params) String() string {
	tokens := make([]string, 0, len(p))
	for _, item := range p {
		tokens = append(tokens, item.Key+"="+item.Value)
	}
	return strings.Join(tokens, ",")
}
