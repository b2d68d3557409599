package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
)

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

type fakeSNS struct {
	input *sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	return &sns.PublishOutput{MessageId: aws.String("m-2")}, nil
}

type fakeKafka struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error {
	f.closed = true
	return nil
}

func TestSQSSender(t *testing.T) {
	client := &fakeSQS{}
	s := &sqsSender{queueURL: "https://sqs/q", client: client, log: logger.NopLogger{}}

	require.NoError(t, s.Send(context.Background(), sampleEvent()))
	assert.Equal(t, "https://sqs/q", aws.ToString(client.input.QueueUrl))
	assert.Equal(t, "suicide", aws.ToString(client.input.MessageAttributes["keyword"].StringValue))

	var evt domain.ArticleEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &evt))
	assert.Equal(t, "20200720MB0001", evt.DocumentID)

	client.err = errors.New("throttled")
	require.ErrorContains(t, s.Send(context.Background(), sampleEvent()), "throttled")
}

func TestSNSSender(t *testing.T) {
	client := &fakeSNS{}
	s := &snsSender{topicARN: "arn:aws:sns:ap-east-1:1:wisenews", client: client, log: logger.NopLogger{}}

	require.NoError(t, s.Send(context.Background(), sampleEvent()))
	assert.Equal(t, "arn:aws:sns:ap-east-1:1:wisenews", aws.ToString(client.input.TopicArn))
	assert.Contains(t, aws.ToString(client.input.Message), `"run_id":"run-1"`)
}

func TestLoadAWSConfigCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "ENVKEY")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "envsecret")

	cfg, err := loadAWSConfig(context.Background(), "ap-east-1", "AKIA", "x")
	require.NoError(t, err)
	assert.Equal(t, "ap-east-1", cfg.Region)
	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIA", creds.AccessKeyID)

	cfg, err = loadAWSConfig(context.Background(), "ap-east-1", "", "")
	require.NoError(t, err)
	creds, err = cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ENVKEY", creds.AccessKeyID)
}

func TestKafkaSenderThroughQueuePublisher(t *testing.T) {
	writer := &fakeKafka{}
	pub := &queuePublisher{
		id:       "stream",
		provider: QueueProviderKafka,
		sender:   &kafkaSender{topic: "wisenews.articles", writer: writer, log: logger.NopLogger{}},
		log:      logger.NopLogger{},
	}

	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))
	require.Len(t, writer.msgs, 1)
	assert.Equal(t, []byte("20200720MB0001"), writer.msgs[0].Key)
	assert.Equal(t, "keyword", writer.msgs[0].Headers[0].Key)

	require.NoError(t, CloseAll([]Publisher{pub}))
	assert.True(t, writer.closed)
}
