package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"
	amazonsqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	smithyendpoints "github.com/aws/smithy-go/endpoints"

	"github.com/drblury/mediaflow/internal/runtime/config"
	"github.com/drblury/mediaflow/internal/runtime/consumer"
	loggingpkg "github.com/drblury/mediaflow/internal/runtime/logging"
)

// SQSAPI is the subset of the SQS client the queue backend uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *amazonsqs.ReceiveMessageInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *amazonsqs.DeleteMessageInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *amazonsqs.ChangeMessageVisibilityInput, optFns ...func(*amazonsqs.Options)) (*amazonsqs.ChangeMessageVisibilityOutput, error)
}

// SNSAPI is the subset of the SNS client the topic backend uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *amazonsns.PublishInput, optFns ...func(*amazonsns.Options)) (*amazonsns.PublishOutput, error)
}

var (
	AWSDefaultConfigLoader  = awsconfig.LoadDefaultConfig
	SNSTopicResolverFactory = func(accountID, region string) (sns.TopicResolver, error) {
		return sns.NewGenerateArnTopicResolver(accountID, region)
	}
	SQSClientFactory = func(cfg aws.Config, optFns ...func(*amazonsqs.Options)) SQSAPI {
		return amazonsqs.NewFromConfig(cfg, optFns...)
	}
	SNSClientFactory = func(cfg aws.Config, optFns ...func(*amazonsns.Options)) SNSAPI {
		return amazonsns.NewFromConfig(cfg, optFns...)
	}
)

const (
	localstackAccountID = "000000000000"
	awsAccountIDLength  = 12
	arnPrefix           = "arn:"
)

// SQSQueue is a consumer.QueueBackend over one SQS queue.
type SQSQueue struct {
	client   SQSAPI
	queueURL string
}

// NewSQSQueue returns the backend of queueURL.
func NewSQSQueue(client SQSAPI, queueURL string) *SQSQueue {
	return &SQSQueue{client: client, queueURL: queueURL}
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages, waitSeconds int32) ([]consumer.RawMessage, error) {
	out, err := q.client.ReceiveMessage(ctx, &amazonsqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     waitSeconds,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, describeAPIError("receive", err)
	}

	raws := make([]consumer.RawMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		count, _ := strconv.Atoi(m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)])
		raws = append(raws, consumer.RawMessage{
			ID:                      aws.ToString(m.MessageId),
			ReceiptHandle:           aws.ToString(m.ReceiptHandle),
			Body:                    aws.ToString(m.Body),
			Checksum:                aws.ToString(m.MD5OfBody),
			ApproximateReceiveCount: count,
		})
	}
	return raws, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.client.DeleteMessage(ctx, &amazonsqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return describeAPIError("delete", err)
}

func (q *SQSQueue) ChangeVisibility(ctx context.Context, receiptHandle string, timeoutSeconds int32) error {
	_, err := q.client.ChangeMessageVisibility(ctx, &amazonsqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.queueURL),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: timeoutSeconds,
	})
	return describeAPIError("change visibility", err)
}

// SNSTopics is a producer.TopicBackend over SNS. Topics are given as ARNs or
// as names, which are resolved to ARNs of the configured account and region.
type SNSTopics struct {
	client   SNSAPI
	resolver sns.TopicResolver
}

// NewSNSTopics returns the SNS backend. resolver may be nil when every topic
// is configured as an ARN.
func NewSNSTopics(client SNSAPI, resolver sns.TopicResolver) *SNSTopics {
	return &SNSTopics{client: client, resolver: resolver}
}

func (t *SNSTopics) Publish(ctx context.Context, topic, body string) (string, error) {
	arn, err := t.topicArn(ctx, topic)
	if err != nil {
		return "", err
	}
	out, err := t.client.Publish(ctx, &amazonsns.PublishInput{
		TopicArn: aws.String(arn),
		Message:  aws.String(body),
	})
	if err != nil {
		return "", describeAPIError("publish", err)
	}
	return aws.ToString(out.MessageId), nil
}

func (t *SNSTopics) topicArn(ctx context.Context, topic string) (string, error) {
	if strings.HasPrefix(topic, arnPrefix) || t.resolver == nil {
		return topic, nil
	}
	arn, err := t.resolver.ResolveTopic(ctx, topic)
	if err != nil {
		return "", fmt.Errorf("resolve topic %q: %w", topic, err)
	}
	return string(arn), nil
}

// describeAPIError adds the service error code to AWS API errors.
func describeAPIError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("sqs/sns %s failed with %s (%s fault): %w", op, apiErr.ErrorCode(), apiErr.ErrorFault(), err)
	}
	return fmt.Errorf("sqs/sns %s failed: %w", op, err)
}

func awsTransport(ctx context.Context, conf *config.Config, logger loggingpkg.ServiceLogger) (Transport, error) {
	cfg, err := createAWSConfig(ctx, conf, logger)
	if err != nil {
		return Transport{}, err
	}
	logger.Info("Created AWS config", loggingpkg.LogFields{
		"region":          cfg.Region,
		"custom_endpoint": conf.AWSEndpoint != "",
	})

	var topicResolver sns.TopicResolver
	accountID, region := resolveAccountAndRegion(conf, logger, cfg.Region)
	if accountID == "" {
		logger.Info("AWS account ID empty; topics must be configured as ARNs", nil)
	} else if topicResolver, err = createTopicResolver(accountID, region, logger); err != nil {
		return Transport{}, err
	}

	snsOpts, sqsOpts, err := endpointOptions(conf)
	if err != nil {
		return Transport{}, err
	}

	t := Transport{Topics: NewSNSTopics(SNSClientFactory(*cfg, snsOpts...), topicResolver)}
	if conf.QueueURL != "" {
		t.Queue = NewSQSQueue(SQSClientFactory(*cfg, sqsOpts...), conf.QueueURL)
	}
	return t, nil
}

func createAWSConfig(ctx context.Context, conf *config.Config, logger loggingpkg.ServiceLogger) (*aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if conf.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(conf.AWSRegion))
	}
	if conf.AWSAccessKeyID != "" && conf.AWSSecretAccessKey != "" {
		logger.Info("Using static AWS credentials from config", nil)
		opts = append(opts, awsconfig.WithCredentialsProvider(staticCredentialsProvider(conf.AWSAccessKeyID, conf.AWSSecretAccessKey)))
	}

	cfg, err := AWSDefaultConfigLoader(ctx, opts...)
	if err != nil {
		logger.Error("Failed to load AWS default config", err, loggingpkg.LogFields{"requested_region": conf.AWSRegion})
		return nil, err
	}
	// Ensure region is set even if the loader ignores options (e.g. in tests)
	if conf.AWSRegion != "" {
		cfg.Region = conf.AWSRegion
	}
	return &cfg, nil
}

// endpointOptions points both clients at conf.AWSEndpoint, for LocalStack.
func endpointOptions(conf *config.Config) ([]func(*amazonsns.Options), []func(*amazonsqs.Options), error) {
	if conf.AWSEndpoint == "" {
		return nil, nil, nil
	}
	parsedURL, err := url.Parse(conf.AWSEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse AWS endpoint: %w", err)
	}
	endpoint := smithyendpoints.Endpoint{URI: *parsedURL}
	snsOpts := []func(*amazonsns.Options){
		amazonsns.WithEndpointResolverV2(sns.OverrideEndpointResolver{Endpoint: endpoint}),
	}
	sqsOpts := []func(*amazonsqs.Options){
		amazonsqs.WithEndpointResolverV2(sqs.OverrideEndpointResolver{Endpoint: endpoint}),
	}
	return snsOpts, sqsOpts, nil
}

func resolveAccountAndRegion(conf *config.Config, logger loggingpkg.ServiceLogger, fallbackRegion string) (string, string) {
	accountID := strings.Trim(conf.AWSAccountID, "\"' ")
	region := conf.AWSRegion
	if region == "" {
		region = fallbackRegion
	}

	if conf.AWSEndpoint == "" {
		return accountID, region
	}
	if accountID == "" {
		logger.Info("AWS account ID empty; using LocalStack default", loggingpkg.LogFields{"accountID": localstackAccountID})
		return localstackAccountID, region
	}
	if len(accountID) != awsAccountIDLength {
		logger.Info("Invalid AWS account ID; falling back to LocalStack default", loggingpkg.LogFields{"accountID": accountID})
		return localstackAccountID, region
	}
	return accountID, region
}

func createTopicResolver(accountID, region string, logger loggingpkg.ServiceLogger) (sns.TopicResolver, error) {
	topicResolver, err := SNSTopicResolverFactory(accountID, region)
	if err != nil {
		logger.Error("Failed to create SNS topic resolver", err, loggingpkg.LogFields{
			"accountID": accountID,
			"region":    region,
		})
		return nil, err
	}
	return topicResolver, nil
}

func staticCredentialsProvider(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
		}, nil
	})
}
