// Package sink exports clock tree events to Elasticsearch: a
// buffered, batched bulk writer fed by a background flush loop.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/dvbcss/clocktree/clock"
	"github.com/dvbcss/clocktree/internal/config"
	"github.com/dvbcss/clocktree/internal/registry"
)

// eventDocument is one buffered record awaiting a bulk flush.
type eventDocument struct {
	Index string
	Data  map[string]interface{}
}

// Sink subscribes to every clock in a Registry and batches their
// change/available/unavailable events to Elasticsearch.
type Sink struct {
	es     *elasticsearch.Client
	config config.ElasticsearchConfig
	logger *logrus.Logger

	bufferMu   sync.Mutex
	buffer     []eventDocument
	bufferSize int

	subs []subscriptionRef

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type subscriptionRef struct {
	clock clock.Clock
	kind  clock.EventKind
	token clock.Subscription
}

// New creates a Sink and verifies connectivity to Elasticsearch. It
// does not subscribe to anything until Attach is called.
func New(cfg config.ElasticsearchConfig, logger *logrus.Logger) (*Sink, error) {
	esCfg := elasticsearch.Config{Addresses: cfg.Hosts}
	if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	if cfg.APIKey != "" {
		esCfg.APIKey = cfg.APIKey
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		es:         es,
		config:     cfg,
		logger:     logger,
		bufferSize: 100,
		ctx:        ctx,
		cancel:     cancel,
	}

	if err := s.ping(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to ping elasticsearch: %w", err)
	}

	s.wg.Add(1)
	go s.flushLoop()

	return s, nil
}

// Attach subscribes to every clock currently in reg. Clocks added to
// the registry after Attach runs are not observed.
func (s *Sink) Attach(reg *registry.Registry) {
	for _, c := range reg.All() {
		s.attachOne(c)
	}
}

func (s *Sink) attachOne(c clock.Clock) {
	for _, kind := range []clock.EventKind{clock.EventChange, clock.EventAvailable, clock.EventUnavailable} {
		kind := kind
		token := c.On(kind, func(emitting clock.Clock) {
			s.record(kind, emitting)
		})
		s.subs = append(s.subs, subscriptionRef{clock: c, kind: kind, token: token})
	}
}

// Detach unsubscribes from every clock Attach registered listeners on.
func (s *Sink) Detach() {
	for _, sub := range s.subs {
		sub.clock.Off(sub.kind, sub.token)
	}
	s.subs = nil
}

func (s *Sink) record(kind clock.EventKind, c clock.Clock) {
	status := clock.StatusOf(c)
	doc := map[string]interface{}{
		"event":           string(kind),
		"clock_id":        status.ID,
		"clock_kind":      string(status.Kind),
		"parent_id":       status.ParentID,
		"now":             status.Now,
		"tick_rate":       status.TickRate,
		"speed":           status.Speed,
		"effective_speed": status.EffectiveSpeed,
		"dispersion":      status.Dispersion,
		"available":       status.Available,
	}

	s.bufferMu.Lock()
	s.buffer = append(s.buffer, eventDocument{Index: s.config.Index, Data: doc})
	shouldFlush := len(s.buffer) >= s.bufferSize
	s.bufferMu.Unlock()

	if shouldFlush {
		go s.flush()
	}
}

// Stop flushes any remaining events, detaches every listener, and
// halts the background flush loop.
func (s *Sink) Stop() error {
	s.logger.Info("stopping event sink")
	s.Detach()
	s.flush()
	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Sink) ping() error {
	res, err := s.es.Info()
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch returned error: %s", res.Status())
	}
	s.logger.Info("connected to elasticsearch event sink")
	return nil
}

func (s *Sink) flushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

func (s *Sink) flush() {
	s.bufferMu.Lock()
	if len(s.buffer) == 0 {
		s.bufferMu.Unlock()
		return
	}
	docs := make([]eventDocument, len(s.buffer))
	copy(docs, s.buffer)
	s.buffer = s.buffer[:0]
	s.bufferMu.Unlock()

	if err := s.sendBatch(docs); err != nil {
		s.logger.WithError(err).Error("failed to send event batch")
		s.bufferMu.Lock()
		s.buffer = append(docs, s.buffer...)
		s.bufferMu.Unlock()
	}
}

func (s *Sink) sendBatch(docs []eventDocument) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		index := fmt.Sprintf("%s-%s", doc.Index, time.Now().Format("2006.01.02"))
		meta := map[string]interface{}{"index": map[string]interface{}{"_index": index}}

		metaData, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		docData, err := json.Marshal(doc.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		buf.Write(metaData)
		buf.WriteByte('\n')
		buf.Write(docData)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{Body: strings.NewReader(buf.String())}
	res, err := req.Do(s.ctx, s.es)
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk request returned error: %s", res.Status())
	}

	var response struct {
		Errors bool                     `json:"errors"`
		Items  []map[string]interface{} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if response.Errors {
		s.logger.Warn("some documents in bulk request failed")
	}
	return nil
}
