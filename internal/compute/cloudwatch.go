package compute

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cloudwatchTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricsClient reads endpoint metrics from CloudWatch.
type MetricsClient struct {
	cw *cloudwatch.Client
}

func NewMetricsClient(ctx context.Context, region string) (*MetricsClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &MetricsClient{cw: cloudwatch.NewFromConfig(awsCfg)}, nil
}

// GetStatistics returns averaged datapoints for one endpoint metric over the
// given window, oldest first.
func (m *MetricsClient) GetStatistics(ctx context.Context, endpointName, metricName string, window time.Duration) ([]Datapoint, error) {
	namespace := "AWS/SageMaker"
	switch metricName {
	case "CPUUtilization", "MemoryUtilization":
		namespace = "/aws/sagemaker/Endpoints"
	}

	end := time.Now()
	start := end.Add(-window)

	output, err := m.cw.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(namespace),
		MetricName: aws.String(metricName),
		Dimensions: []cloudwatchTypes.Dimension{
			{Name: aws.String("EndpointName"), Value: aws.String(endpointName)},
			{Name: aws.String("VariantName"), Value: aws.String("primary")},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(300),
		Statistics: []cloudwatchTypes.Statistic{cloudwatchTypes.StatisticAverage},
	})
	if err != nil {
		return nil, fmt.Errorf("getting %s statistics for %s: %w", metricName, endpointName, err)
	}

	points := make([]Datapoint, 0, len(output.Datapoints))
	for _, dp := range output.Datapoints {
		points = append(points, Datapoint{
			Timestamp: aws.ToTime(dp.Timestamp),
			Average:   aws.ToFloat64(dp.Average),
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}
