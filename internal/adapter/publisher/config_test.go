package publisher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigsYAML(t *testing.T) {
	t.Setenv("HOOK_TOKEN", "s3cret")
	path := writeFile(t, "publishers.yaml", `
publishers:
  - id: " hook "
    type: HTTP
    http:
      url: https://example.com/hook
      headers:
        Authorization: "Bearer ${HOOK_TOKEN}"
        X-Empty: ""
  - id: stream
    type: queue
    enabled: false
    queue:
      provider: Kafka
      kafka:
        brokers: [" localhost:9092 ", ""]
        topic: wisenews.articles
`)

	cfgs, err := LoadConfigs(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)

	hook := cfgs[0]
	assert.Equal(t, "hook", hook.ID)
	assert.Equal(t, TypeHTTP, hook.Type)
	assert.Equal(t, 5, hook.HTTP.TimeoutSeconds)
	assert.Equal(t, map[string]string{"Authorization": "Bearer s3cret"}, hook.HTTP.Headers)
	assert.True(t, hook.EnabledValue())

	stream := cfgs[1]
	assert.Equal(t, QueueProviderKafka, stream.Queue.Provider)
	assert.Equal(t, []string{"localhost:9092"}, stream.Queue.Kafka.Brokers)
	assert.False(t, stream.EnabledValue())

	enabled := Enabled(cfgs)
	require.Len(t, enabled, 1)
	assert.Equal(t, "hook", enabled[0].ID)
}

func TestLoadConfigsJSON(t *testing.T) {
	path := writeFile(t, "publishers.json", `{"publishers":[
  {"id":"q","type":"queue","queue":{"provider":"aws-sqs","aws":{
    "uri":"https://sqs.ap-east-1.amazonaws.com/1/wisenews","region":"ap-east-1",
    "access_key_id":"AKIA","secret_access_key":"x"}}}
]}`)

	cfgs, err := LoadConfigs(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, "ap-east-1", cfgs[0].Queue.AWS.Region)
	assert.Equal(t, "AKIA", cfgs[0].Queue.AWS.AccessKeyID)
}

func TestLoadConfigsValidation(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"missing id": {
			body: "publishers:\n  - type: http\n    http: {url: http://x}\n",
			want: "id is required",
		},
		"missing url": {
			body: "publishers:\n  - id: a\n    type: http\n    http: {}\n",
			want: "http.url is required",
		},
		"unknown type": {
			body: "publishers:\n  - id: a\n    type: carrier-pigeon\n",
			want: "not supported",
		},
		"sqs with half a key pair": {
			body: "publishers:\n  - id: a\n    type: queue\n    queue:\n      provider: aws-sqs\n      aws: {uri: https://sqs/q, region: ap-east-1, access_key_id: k}\n",
			want: "must be set together",
		},
		"sns without region": {
			body: "publishers:\n  - id: a\n    type: queue\n    queue:\n      provider: aws-sns\n      sns: {topic_arn: arn, access_key_id: k, secret_access_key: s}\n",
			want: "sns.region is required",
		},
		"gcp without topic": {
			body: "publishers:\n  - id: a\n    type: queue\n    queue:\n      provider: gcp\n      gcp: {project_id: p}\n",
			want: "gcp.topic is required",
		},
		"kafka without brokers": {
			body: "publishers:\n  - id: a\n    type: queue\n    queue:\n      provider: kafka\n      kafka: {topic: t}\n",
			want: "kafka.brokers is required",
		},
		"unknown provider": {
			body: "publishers:\n  - id: a\n    type: queue\n    queue: {provider: azure}\n",
			want: "not supported",
		},
		"duplicate ids": {
			body: "publishers:\n  - {id: a, type: http, http: {url: http://x}}\n  - {id: a, type: http, http: {url: http://y}}\n",
			want: "duplicate publisher id",
		},
		"empty file": {
			body: "publishers: []\n",
			want: "no publishers",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfigs(writeFile(t, "p.yaml", tc.body))
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestLoadConfigsMissingFile(t *testing.T) {
	_, err := LoadConfigs("")
	require.Error(t, err)

	_, err = LoadConfigs(writeFile(t, "publishers.toml", "publishers = []\n"))
	require.ErrorContains(t, err, "not supported")

	_, err = LoadConfigs(writeFile(t, "publishers.json", "publishers: []\n"))
	require.ErrorContains(t, err, "decode publishers file")

	_, err = LoadConfigs(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
