package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Supported publisher types.
	TypeQueue = "queue"
	TypeHTTP  = "http"

	// Supported queue providers.
	QueueProviderAWSSQS = "aws-sqs"
	QueueProviderAWSSNS = "aws-sns"
	QueueProviderGCP    = "gcp"
	QueueProviderKafka  = "kafka"

	httpDefaultTimeoutSeconds = 5
)

// configFile is the publishers file layout.
type configFile struct {
	Publishers []Config `json:"publishers" yaml:"publishers"`
}

// Config is a single publisher entry.
type Config struct {
	ID      string       `json:"id" yaml:"id"`
	Type    string       `json:"type" yaml:"type"`
	Enabled *bool        `json:"enabled" yaml:"enabled"`
	Queue   *QueueConfig `json:"queue" yaml:"queue"`
	HTTP    *HTTPConfig  `json:"http" yaml:"http"`
}

// QueueConfig selects a queue provider.
type QueueConfig struct {
	Provider string       `json:"provider" yaml:"provider"`
	AWS      *SQSConfig   `json:"aws" yaml:"aws"`
	SNS      *SNSConfig   `json:"sns" yaml:"sns"`
	GCP      *GCPConfig   `json:"gcp" yaml:"gcp"`
	Kafka    *KafkaConfig `json:"kafka" yaml:"kafka"`
}

// SQSConfig targets one queue. Static keys are optional; without them the
// default AWS credential chain applies.
type SQSConfig struct {
	QueueURL        string `json:"uri" yaml:"uri"`
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

type SNSConfig struct {
	TopicARN        string `json:"topic_arn" yaml:"topic_arn"`
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

type GCPConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

// HTTPConfig is a webhook that receives one POST per article event.
type HTTPConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// EnabledValue returns the enabled flag, defaulting to true.
func (cfg Config) EnabledValue() bool {
	if cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}

// LoadConfigs reads a YAML or JSON publishers file. ${VAR} references are
// expanded from the environment before decoding.
func LoadConfigs(path string) ([]Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	file, err := parseConfigFile([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(file.Publishers) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}

	seen := make(map[string]struct{}, len(file.Publishers))
	out := make([]Config, 0, len(file.Publishers))
	for i := range file.Publishers {
		cfg := sanitizeConfig(file.Publishers[i])
		if err := validateConfig(cfg); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := seen[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		seen[cfg.ID] = struct{}{}
		out = append(out, cfg)
	}
	return out, nil
}

// Enabled filters out disabled entries.
func Enabled(cfgs []Config) []Config {
	out := make([]Config, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

func parseConfigFile(data []byte, ext string) (configFile, error) {
	var (
		file configFile
		err  error
	)
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".json":
		err = json.Unmarshal(data, &file)
	default:
		return configFile{}, fmt.Errorf("publishers file extension %q not supported (expected .yaml, .yml or .json)", ext)
	}
	if err != nil {
		return configFile{}, fmt.Errorf("decode publishers file: %w", err)
	}
	return file, nil
}

func sanitizeConfig(cfg Config) Config {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	if cfg.Queue != nil {
		qc := *cfg.Queue
		qc.Provider = strings.ToLower(strings.TrimSpace(qc.Provider))
		if qc.AWS != nil {
			a := *qc.AWS
			a.QueueURL = strings.TrimSpace(a.QueueURL)
			a.Region = strings.TrimSpace(a.Region)
			a.AccessKeyID = strings.TrimSpace(a.AccessKeyID)
			a.SecretAccessKey = strings.TrimSpace(a.SecretAccessKey)
			qc.AWS = &a
		}
		if qc.SNS != nil {
			s := *qc.SNS
			s.TopicARN = strings.TrimSpace(s.TopicARN)
			s.Region = strings.TrimSpace(s.Region)
			s.AccessKeyID = strings.TrimSpace(s.AccessKeyID)
			s.SecretAccessKey = strings.TrimSpace(s.SecretAccessKey)
			qc.SNS = &s
		}
		if qc.GCP != nil {
			g := *qc.GCP
			g.ProjectID = strings.TrimSpace(g.ProjectID)
			g.Topic = strings.TrimSpace(g.Topic)
			g.CredentialsFile = strings.TrimSpace(g.CredentialsFile)
			qc.GCP = &g
		}
		if qc.Kafka != nil {
			k := *qc.Kafka
			brokers := make([]string, 0, len(k.Brokers))
			for _, b := range k.Brokers {
				if b = strings.TrimSpace(b); b != "" {
					brokers = append(brokers, b)
				}
			}
			k.Brokers = brokers
			k.Topic = strings.TrimSpace(k.Topic)
			qc.Kafka = &k
		}
		cfg.Queue = &qc
	}
	if cfg.HTTP != nil {
		c := *cfg.HTTP
		c.URL = strings.TrimSpace(c.URL)
		c.Headers = sanitizeHeaders(c.Headers)
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		cfg.HTTP = &c
	}
	return cfg
}

func sanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func validateConfig(cfg Config) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	switch cfg.Type {
	case "":
		return fmt.Errorf("type is required for publisher %q", cfg.ID)
	case TypeQueue:
		if cfg.Queue == nil {
			return fmt.Errorf("queue config required for publisher %q", cfg.ID)
		}
		switch cfg.Queue.Provider {
		case QueueProviderAWSSQS:
			return validateSQS(cfg.ID, cfg.Queue.AWS)
		case QueueProviderAWSSNS:
			return validateSNS(cfg.ID, cfg.Queue.SNS)
		case QueueProviderGCP:
			return validateGCP(cfg.ID, cfg.Queue.GCP)
		case QueueProviderKafka:
			return validateKafka(cfg.ID, cfg.Queue.Kafka)
		default:
			return fmt.Errorf("queue provider %q not supported for publisher %q", cfg.Queue.Provider, cfg.ID)
		}
	case TypeHTTP:
		if cfg.HTTP == nil {
			return fmt.Errorf("http config required for publisher %q", cfg.ID)
		}
		if cfg.HTTP.URL == "" {
			return fmt.Errorf("http.url is required for publisher %q", cfg.ID)
		}
		return nil
	default:
		return fmt.Errorf("type %q not supported for publisher %q", cfg.Type, cfg.ID)
	}
}

func validateSQS(id string, cfg *SQSConfig) error {
	if cfg == nil {
		return fmt.Errorf("sqs config required for publisher %q", id)
	}
	switch {
	case cfg.QueueURL == "":
		return fmt.Errorf("sqs.uri is required for publisher %q", id)
	case cfg.Region == "":
		return fmt.Errorf("sqs.region is required for publisher %q", id)
	case (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == ""):
		return fmt.Errorf("sqs.access_key_id and sqs.secret_access_key must be set together for publisher %q", id)
	}
	return nil
}

func validateSNS(id string, cfg *SNSConfig) error {
	if cfg == nil {
		return fmt.Errorf("sns config required for publisher %q", id)
	}
	switch {
	case cfg.TopicARN == "":
		return fmt.Errorf("sns.topic_arn is required for publisher %q", id)
	case cfg.Region == "":
		return fmt.Errorf("sns.region is required for publisher %q", id)
	case (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == ""):
		return fmt.Errorf("sns.access_key_id and sns.secret_access_key must be set together for publisher %q", id)
	}
	return nil
}

func validateGCP(id string, cfg *GCPConfig) error {
	if cfg == nil {
		return fmt.Errorf("gcp config required for publisher %q", id)
	}
	if cfg.ProjectID == "" {
		return fmt.Errorf("gcp.project_id is required for publisher %q", id)
	}
	if cfg.Topic == "" {
		return fmt.Errorf("gcp.topic is required for publisher %q", id)
	}
	return nil
}

func validateKafka(id string, cfg *KafkaConfig) error {
	if cfg == nil {
		return fmt.Errorf("kafka config required for publisher %q", id)
	}
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required for publisher %q", id)
	}
	if cfg.Topic == "" {
		return fmt.Errorf("kafka.topic is required for publisher %q", id)
	}
	return nil
}
