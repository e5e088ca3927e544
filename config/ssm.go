package config

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// ParametersAPI is the subset of the SSM client used to overlay secrets.
type ParametersAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

var newSSMClient = func(ctx context.Context, region string) (ParametersAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return ssm.NewFromConfig(cfg), nil
}

// LoadSSM overlays parameters stored under SSM_PARAMETER_PATH onto config.
// A parameter named /diary/prod/SECRET_KEY becomes config["SECRET_KEY"].
// Values already present in the environment win.
func LoadSSM(ctx context.Context, config map[string]string) error {
	prefix := GetString(config, "SSM_PARAMETER_PATH", "")
	if prefix == "" {
		return nil
	}

	client, err := newSSMClient(ctx, GetString(config, "AWS_REGION", "us-east-1"))
	if err != nil {
		return fmt.Errorf("create ssm client: %w", err)
	}

	n, err := overlayParameters(ctx, client, prefix, config)
	if err != nil {
		return err
	}
	log.Info().Str("path", prefix).Int("parameters", n).Msg("Loaded configuration from SSM")
	return nil
}

func overlayParameters(ctx context.Context, client ParametersAPI, prefix string, config map[string]string) (int, error) {
	loaded := 0
	input := &ssm.GetParametersByPathInput{
		Path:           aws.String(prefix),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	}

	paginator := ssm.NewGetParametersByPathPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return loaded, fmt.Errorf("read ssm parameters under %s: %w", prefix, err)
		}
		for _, p := range page.Parameters {
			key := strings.ToUpper(path.Base(aws.ToString(p.Name)))
			if key == "" || key == "/" {
				continue
			}
			if existing, ok := config[key]; ok && existing != "" {
				continue
			}
			config[key] = aws.ToString(p.Value)
			loaded++
		}
	}
	return loaded, nil
}
