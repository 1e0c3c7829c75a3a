package compute

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	sagemakerTypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

// Client wraps the managed training and serving compute. It is the single
// vendor-facing type; callers depend on the narrow interfaces they declare.
type Client struct {
	sm      *sagemaker.Client
	runtime *sagemakerruntime.Client
}

func New(ctx context.Context, region string) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Client{
		sm:      sagemaker.NewFromConfig(awsCfg),
		runtime: sagemakerruntime.NewFromConfig(awsCfg),
	}, nil
}

func (c *Client) CreateTrainingJob(ctx context.Context, spec TrainingJobSpec) error {
	channels := []sagemakerTypes.Channel{
		{
			ChannelName: aws.String("train"),
			DataSource: &sagemakerTypes.DataSource{
				S3DataSource: &sagemakerTypes.S3DataSource{
					S3DataType: sagemakerTypes.S3DataTypeS3Prefix,
					S3Uri:      aws.String(spec.InputS3URI),
				},
			},
			ContentType: aws.String("application/json"),
		},
	}
	if spec.ValidationS3URI != "" {
		channels = append(channels, sagemakerTypes.Channel{
			ChannelName: aws.String("validation"),
			DataSource: &sagemakerTypes.DataSource{
				S3DataSource: &sagemakerTypes.S3DataSource{
					S3DataType: sagemakerTypes.S3DataTypeS3Prefix,
					S3Uri:      aws.String(spec.ValidationS3URI),
				},
			},
			ContentType: aws.String("application/json"),
		})
	}

	_, err := c.sm.CreateTrainingJob(ctx, &sagemaker.CreateTrainingJobInput{
		TrainingJobName: aws.String(spec.JobName),
		RoleArn:         aws.String(spec.RoleARN),
		AlgorithmSpecification: &sagemakerTypes.AlgorithmSpecification{
			TrainingImage:     aws.String(spec.TrainingImage),
			TrainingInputMode: sagemakerTypes.TrainingInputModeFile,
		},
		HyperParameters: spec.Hyperparameters,
		InputDataConfig: channels,
		OutputDataConfig: &sagemakerTypes.OutputDataConfig{
			S3OutputPath: aws.String(spec.OutputS3URI),
		},
		ResourceConfig: &sagemakerTypes.ResourceConfig{
			InstanceType:   sagemakerTypes.TrainingInstanceType(spec.InstanceType),
			InstanceCount:  aws.Int32(spec.InstanceCount),
			VolumeSizeInGB: aws.Int32(spec.VolumeSizeGB),
		},
		StoppingCondition: &sagemakerTypes.StoppingCondition{
			MaxRuntimeInSeconds: aws.Int32(int32(spec.MaxRuntime.Seconds())),
		},
	})
	if err != nil {
		return fmt.Errorf("creating training job %s: %w", spec.JobName, err)
	}
	return nil
}

func (c *Client) DescribeTrainingJob(ctx context.Context, jobName string) (*TrainingJobState, error) {
	output, err := c.sm.DescribeTrainingJob(ctx, &sagemaker.DescribeTrainingJobInput{
		TrainingJobName: aws.String(jobName),
	})
	if err != nil {
		return nil, fmt.Errorf("describing training job %s: %w", jobName, err)
	}

	state := &TrainingJobState{
		Metrics:       make(map[string]float64),
		FailureReason: aws.ToString(output.FailureReason),
	}

	switch output.TrainingJobStatus {
	case sagemakerTypes.TrainingJobStatusCompleted:
		state.Status = models.JobCompleted
	case sagemakerTypes.TrainingJobStatusFailed, sagemakerTypes.TrainingJobStatusStopped:
		state.Status = models.JobFailed
	default:
		state.Status = models.JobInProgress
	}

	for _, m := range output.FinalMetricDataList {
		state.Metrics[aws.ToString(m.MetricName)] = float64(aws.ToFloat32(m.Value))
	}

	if output.ModelArtifacts != nil {
		state.ModelDataURL = aws.ToString(output.ModelArtifacts.S3ModelArtifacts)
	}

	return state, nil
}

func (c *Client) CreateModel(ctx context.Context, spec ModelSpec) error {
	_, err := c.sm.CreateModel(ctx, &sagemaker.CreateModelInput{
		ModelName: aws.String(spec.ModelName),
		PrimaryContainer: &sagemakerTypes.ContainerDefinition{
			Image:        aws.String(spec.Image),
			ModelDataUrl: aws.String(spec.ModelDataURL),
		},
		ExecutionRoleArn: aws.String(spec.RoleARN),
	})
	if err != nil {
		return fmt.Errorf("creating model %s: %w", spec.ModelName, err)
	}
	return nil
}

func (c *Client) CreateEndpointConfig(ctx context.Context, spec EndpointConfigSpec) error {
	variants := make([]sagemakerTypes.ProductionVariant, 0, len(spec.Variants))
	for _, v := range spec.Variants {
		variants = append(variants, sagemakerTypes.ProductionVariant{
			VariantName:          aws.String(v.VariantName),
			ModelName:            aws.String(v.ModelName),
			InstanceType:         sagemakerTypes.ProductionVariantInstanceType(v.InstanceType),
			InitialInstanceCount: aws.Int32(v.InstanceCount),
			InitialVariantWeight: aws.Float32(v.Weight),
		})
	}

	input := &sagemaker.CreateEndpointConfigInput{
		EndpointConfigName: aws.String(spec.ConfigName),
		ProductionVariants: variants,
	}
	if spec.CaptureS3URI != "" {
		input.DataCaptureConfig = &sagemakerTypes.DataCaptureConfig{
			EnableCapture:             aws.Bool(true),
			InitialSamplingPercentage: aws.Int32(100),
			DestinationS3Uri:          aws.String(spec.CaptureS3URI),
			CaptureOptions: []sagemakerTypes.CaptureOption{
				{CaptureMode: sagemakerTypes.CaptureModeInput},
				{CaptureMode: sagemakerTypes.CaptureModeOutput},
			},
		}
	}

	_, err := c.sm.CreateEndpointConfig(ctx, input)
	if err != nil {
		return fmt.Errorf("creating endpoint config %s: %w", spec.ConfigName, err)
	}
	return nil
}

func (c *Client) CreateEndpoint(ctx context.Context, endpointName, configName string) error {
	_, err := c.sm.CreateEndpoint(ctx, &sagemaker.CreateEndpointInput{
		EndpointName:       aws.String(endpointName),
		EndpointConfigName: aws.String(configName),
	})
	if err != nil {
		return fmt.Errorf("creating endpoint %s: %w", endpointName, err)
	}
	return nil
}

func (c *Client) UpdateEndpoint(ctx context.Context, endpointName, configName string) error {
	_, err := c.sm.UpdateEndpoint(ctx, &sagemaker.UpdateEndpointInput{
		EndpointName:       aws.String(endpointName),
		EndpointConfigName: aws.String(configName),
	})
	if err != nil {
		return fmt.Errorf("updating endpoint %s: %w", endpointName, err)
	}
	return nil
}

// DescribeEndpoint returns the endpoint status, or "" when the endpoint does
// not exist.
func (c *Client) DescribeEndpoint(ctx context.Context, endpointName string) (string, error) {
	output, err := c.sm.DescribeEndpoint(ctx, &sagemaker.DescribeEndpointInput{
		EndpointName: aws.String(endpointName),
	})
	if err != nil {
		var notFound *sagemakerTypes.ResourceNotFound
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("describing endpoint %s: %w", endpointName, err)
	}
	return string(output.EndpointStatus), nil
}

func (c *Client) DeleteEndpoint(ctx context.Context, endpointName string) error {
	_, err := c.sm.DeleteEndpoint(ctx, &sagemaker.DeleteEndpointInput{
		EndpointName: aws.String(endpointName),
	})
	if err != nil {
		return fmt.Errorf("deleting endpoint %s: %w", endpointName, err)
	}
	return nil
}

func (c *Client) UpdateVariantCapacity(ctx context.Context, endpointName, variantName string, instanceCount int32) error {
	_, err := c.sm.UpdateEndpointWeightsAndCapacities(ctx, &sagemaker.UpdateEndpointWeightsAndCapacitiesInput{
		EndpointName: aws.String(endpointName),
		DesiredWeightsAndCapacities: []sagemakerTypes.DesiredWeightAndCapacity{
			{
				VariantName:          aws.String(variantName),
				DesiredInstanceCount: aws.Int32(instanceCount),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("updating capacity for endpoint %s: %w", endpointName, err)
	}
	return nil
}

func (c *Client) InvokeEndpoint(ctx context.Context, endpointName string, payload []byte) ([]byte, error) {
	output, err := c.runtime.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(endpointName),
		ContentType:  aws.String("application/json"),
		Body:         payload,
	})
	if err != nil {
		return nil, fmt.Errorf("invoking endpoint %s: %w", endpointName, err)
	}
	return output.Body, nil
}
