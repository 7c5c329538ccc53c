// Package influx writes renderer performance points to InfluxDB. When the
// server cannot be reached the points go to a gzipped line protocol file
// instead, so a later import loses nothing.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/OCAP2/hud/internal/config"
)

// PerformanceBucket receives renderer frame statistics.
const PerformanceBucket = "hud_performance"

// bucketRetention is how long frame statistics are kept.
const bucketRetention = 7 * 24 * time.Hour

var (
	ErrDisabled      = errors.New("influxdb is disabled")
	ErrNoDestination = errors.New("influxdb offline and no backup file open")
)

// backup is an append-only gzip stream of line protocol.
type backup struct {
	file *os.File
	gz   *gzip.Writer
}

func openBackup(path string) (*backup, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening influx backup %s: %w", path, err)
	}
	return &backup{file: f, gz: gzip.NewWriter(f)}, nil
}

func (b *backup) write(p *influxdb2_write.Point) error {
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	if _, err := b.gz.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("writing influx backup: %w", err)
	}
	return nil
}

func (b *backup) close() error {
	return errors.Join(b.gz.Close(), b.file.Close())
}

// Manager routes points to per-bucket write APIs, or to the backup file
// while offline.
type Manager struct {
	cfg        config.InfluxConfig
	log        zerolog.Logger
	backupPath string
	buckets    []string

	client  influxdb2.Client
	writers map[string]influxdb2_api.WriteAPI
	online  bool

	mu     sync.Mutex
	backup *backup
}

// NewManager prepares a manager for the performance bucket plus the
// configured one. Nothing is dialed until Connect.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	buckets := []string{PerformanceBucket}
	if cfg.Bucket != "" && !slices.Contains(buckets, cfg.Bucket) {
		buckets = append(buckets, cfg.Bucket)
	}
	return &Manager{
		cfg:        cfg,
		log:        log,
		backupPath: backupPath,
		buckets:    buckets,
		writers:    make(map[string]influxdb2_api.WriteAPI),
	}
}

func (m *Manager) URL() string {
	return fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
}

// Buckets lists the buckets points may be written to.
func (m *Manager) Buckets() []string { return slices.Clone(m.buckets) }

// Online reports whether points go to the server rather than the backup.
func (m *Manager) Online() bool { return m.online }

// Connect pings the server and prepares its org and buckets. An unreachable
// server is not an error: the manager switches to the backup file.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.client = influxdb2.NewClientWithOptions(m.URL(), m.cfg.Token,
		influxdb2.DefaultOptions().SetBatchSize(500).SetFlushInterval(1000))

	if ok, err := m.client.Ping(ctx); err != nil || !ok {
		m.log.Warn().AnErr("ping", err).Str("url", m.URL()).Str("backupPath", m.backupPath).
			Msg("InfluxDB unreachable, writing points to backup file")
		return m.OpenBackup()
	}

	org, err := m.ensureOrg(ctx)
	if err != nil {
		return err
	}
	for _, name := range m.buckets {
		if err := m.ensureBucket(ctx, org, name); err != nil {
			return err
		}
		m.writers[name] = m.writeAPI(name)
	}
	m.online = true
	m.log.Info().Str("url", m.URL()).Strs("buckets", m.buckets).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) ensureOrg(ctx context.Context) (*domain.Organization, error) {
	orgs := m.client.OrganizationsAPI()
	if org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org); err == nil {
		return org, nil
	}
	m.log.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
	org, err := orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
	if err != nil {
		return nil, fmt.Errorf("creating influx org %s: %w", m.cfg.Org, err)
	}
	return org, nil
}

func (m *Manager) ensureBucket(ctx context.Context, org *domain.Organization, name string) error {
	buckets := m.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, name); err == nil {
		return nil
	}
	m.log.Info().Str("bucket", name).Msg("Bucket not found, creating")
	expire := domain.RetentionRuleTypeExpire
	_, err := buckets.CreateBucketWithName(ctx, org, name, domain.RetentionRule{
		Type:         &expire,
		EverySeconds: int64(bucketRetention / time.Second),
	})
	if err != nil {
		return fmt.Errorf("creating influx bucket %s: %w", name, err)
	}
	return nil
}

// writeAPI returns a non-blocking writer for bucket whose async errors are
// logged.
func (m *Manager) writeAPI(bucket string) influxdb2_api.WriteAPI {
	w := m.client.WriteAPI(m.cfg.Org, bucket)
	log := m.log.With().Str("bucket", bucket).Logger()
	go func() {
		for err := range w.Errors() {
			log.Error().Err(err).Msg("Error sending points to InfluxDB")
		}
	}()
	return w
}

// OpenBackup opens the backup file. It is a no-op when already open.
func (m *Manager) OpenBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup != nil {
		return nil
	}
	b, err := openBackup(m.backupPath)
	if err != nil {
		return err
	}
	m.backup = b
	return nil
}

// WritePoint queues p for bucket, or appends it to the backup file while
// offline.
func (m *Manager) WritePoint(bucket string, p *influxdb2_write.Point) error {
	if m.online {
		w, ok := m.writers[bucket]
		if !ok {
			return fmt.Errorf("influx bucket %q not registered", bucket)
		}
		w.WritePoint(p)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup == nil {
		return ErrNoDestination
	}
	return m.backup.write(p)
}

// Close flushes queued points, then closes the client and the backup file.
func (m *Manager) Close() error {
	for _, w := range m.writers {
		w.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup == nil {
		return nil
	}
	err := m.backup.close()
	m.backup = nil
	return err
}

// ParseMetric builds a point from host METRIC arguments, already cleaned:
//
//	bucket, measurement, then any of
//	"tag::name::value"
//	"field::string|int|float::name::value"
//
// Other arguments are ignored.
func ParseMetric(args []string) (bucket string, p *influxdb2_write.Point, err error) {
	if len(args) < 2 {
		return "", nil, fmt.Errorf("metric needs bucket and measurement, got %d args", len(args))
	}
	p = influxdb2_write.NewPointWithMeasurement(args[1])

	for _, arg := range args[2:] {
		kind, rest, _ := strings.Cut(arg, "::")
		switch kind {
		case "tag":
			if name, value, ok := strings.Cut(rest, "::"); ok {
				p.AddTag(name, value)
			}
		case "field":
			parts := strings.SplitN(rest, "::", 3)
			if len(parts) < 3 {
				continue
			}
			v, err := fieldValue(parts[0], parts[2])
			if err != nil {
				return "", nil, fmt.Errorf("metric field %s: %w", parts[1], err)
			}
			if v != nil {
				p.AddField(parts[1], v)
			}
		}
	}
	return args[0], p, nil
}

// fieldValue converts raw to the named type. Unknown types yield nil.
func fieldValue(typ, raw string) (any, error) {
	switch typ {
	case "string":
		return raw, nil
	case "int":
		return strconv.Atoi(raw)
	case "float":
		return strconv.ParseFloat(raw, 64)
	}
	return nil, nil
}
