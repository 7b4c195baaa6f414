package moduleconfig

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	ctx := context.Background()
	cfg, err := Parse(ctx, "type=A,x=1,in_type=udp,p=5,out_type=tcp,q=6,out_type=tcp,r=7")
	require.NoError(t, err)
	require.Equal(t, "type=A,x=1", cfg.Module)
	require.Equal(t, []string{"in_type=udp,p=5"}, cfg.Inputs)
	require.Equal(t, []string{"out_type=tcp,q=6", "out_type=tcp,r=7"}, cfg.Outputs)
}

func TestParseInterleaved(t *testing.T) {
	ctx := context.Background()
	cfg, err := Parse(ctx, "type=foo,verbose=1,in_type=udp,in_port=5000,out_type=tcp,out_host=10.0.0.1,out_port=6000")
	require.NoError(t, err)
	require.Equal(t, "type=foo,verbose=1", cfg.Module)
	require.Equal(t, []string{"in_type=udp,in_port=5000"}, cfg.Inputs)
	require.Equal(t, []string{"out_type=tcp,out_host=10.0.0.1,out_port=6000"}, cfg.Outputs)
}

// Re-joining the buckets yields exactly the original token sequence: order
// is preserved within each bucket and every delimiter begins its bucket.
func TestParseRoundTrip(t *testing.T) {
	ctx := context.Background()
	input := "type=A,x=1,in_type=udp,p=5,in_type=shm,s=2,out_type=tcp,q=6"
	cfg, err := Parse(ctx, input)
	require.NoError(t, err)

	joined := append([]string{cfg.Module}, append(cfg.Inputs, cfg.Outputs...)...)
	require.ElementsMatch(
		t,
		strings.Split(input, ","),
		strings.Split(strings.Join(joined, ","), ","),
	)
}

func TestParseSkipsMalformedTokens(t *testing.T) {
	ctx := context.Background()
	cfg, err := Parse(ctx, "type=A,,bogus,three=parts=here,x=1")
	require.NoError(t, err)
	require.Equal(t, "type=A,x=1", cfg.Module)
	require.Empty(t, cfg.Inputs)
	require.Empty(t, cfg.Outputs)
}

func TestParseModuleOnly(t *testing.T) {
	ctx := context.Background()
	cfg, err := Parse(ctx, "type=A")
	require.NoError(t, err)
	require.Equal(t, "type=A", cfg.Module)
	require.Empty(t, cfg.Inputs)
	require.Empty(t, cfg.Outputs)
}

func TestParams(t *testing.T) {
	p := ParseParams("in_type=udp,in_port=5000,in_addr=239.0.0.1")
	require.Len(t, p, 3)

	v, ok := p.Get("in_type")
	require.True(t, ok)
	require.Equal(t, "udp", v)

	require.Equal(t, 5000, p.GetInt("in_port", -1))
	require.Equal(t, -1, p.GetInt("missing", -1))
	require.Equal(t, -1, p.GetInt("in_addr", -1))

	require.Equal(t, "in_type=udp,in_port=5000,in_addr=239.0.0.1", p.String())
}
