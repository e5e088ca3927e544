package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ReadsEnvironment(t *testing.T) {
	t.Setenv("DIARY_TEST_KEY", "a=b")

	c := New()
	assert.Equal(t, "a=b", c["DIARY_TEST_KEY"])
}

func TestGetters(t *testing.T) {
	c := map[string]string{
		"PORT":    "9000",
		"BAD_INT": "nine",
		"SECURE":  "true",
		"TTL":     "90m",
		"ORIGINS": "http://a.test, ,http://b.test",
		"EMPTY":   "",
	}

	assert.Equal(t, 9000, GetInt(c, "PORT", 8080))
	assert.Equal(t, 8080, GetInt(c, "BAD_INT", 8080))
	assert.Equal(t, 8080, GetInt(nil, "PORT", 8080))
	assert.True(t, GetBool(c, "SECURE", false))
	assert.False(t, GetBool(c, "MISSING", false))
	assert.Equal(t, 90*time.Minute, GetDuration(c, "TTL", time.Hour))
	assert.Equal(t, time.Hour, GetDuration(c, "PORT", time.Hour))
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, GetList(c, "ORIGINS"))
	assert.Equal(t, "fallback", GetString(c, "EMPTY", "fallback"))
	assert.Equal(t, "9000", GetString(c, "PORT", ""))
}

type fakeSSM struct {
	pages [][]types.Parameter
	err   error
	calls int
}

func (f *fakeSSM) GetParametersByPath(ctx context.Context, in *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := &ssm.GetParametersByPathOutput{Parameters: f.pages[f.calls]}
	f.calls++
	if f.calls < len(f.pages) {
		out.NextToken = aws.String("next")
	}
	return out, nil
}

func TestOverlayParameters(t *testing.T) {
	client := &fakeSSM{pages: [][]types.Parameter{
		{{Name: aws.String("/diary/prod/secret_key"), Value: aws.String("from-ssm")}},
		{{Name: aws.String("/diary/prod/PORT"), Value: aws.String("1234")}},
	}}
	c := map[string]string{"PORT": "8080"}

	n, err := overlayParameters(context.Background(), client, "/diary/prod", c)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, "from-ssm", c["SECRET_KEY"])
	assert.Equal(t, "8080", c["PORT"], "environment wins over ssm")
	assert.Equal(t, 2, client.calls)
}

func TestOverlayParameters_Error(t *testing.T) {
	client := &fakeSSM{err: errors.New("denied")}
	_, err := overlayParameters(context.Background(), client, "/diary", map[string]string{})
	assert.ErrorContains(t, err, "denied")
}

func TestLoadSSM_NoPathIsNoop(t *testing.T) {
	called := false
	orig := newSSMClient
	newSSMClient = func(ctx context.Context, region string) (ParametersAPI, error) {
		called = true
		return nil, nil
	}
	t.Cleanup(func() { newSSMClient = orig })

	require.NoError(t, LoadSSM(context.Background(), map[string]string{}))
	assert.False(t, called)
}
