package frozen

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrUnknownVariant   = errors.New("unknown frozen variant")
)

// Variant 一个已发布的冻结数据库
type Variant struct {
	Tickers     []string  `yaml:"tickers,omitempty"`
	TickersFile string    `yaml:"tickers_file,omitempty"`
	Filename    string    `yaml:"filename"`
	Checksum    string    `yaml:"checksum"`
	URL         string    `yaml:"url,omitempty"`
	CreatedAt   time.Time `yaml:"created_at,omitempty"`
}

type Manifest struct {
	Variants map[string]Variant `yaml:"variants"`
}

// LoadManifest 文件不存在时返回空清单
func LoadManifest(path string) (*Manifest, error) {
	m := &Manifest{Variants: map[string]Variant{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.Variants == nil {
		m.Variants = map[string]Variant{}
	}
	return m, nil
}

func (m *Manifest) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create manifest dir: %w", err)
		}
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return nil
}

// Merge 用 variants 覆盖同名条目
func (m *Manifest) Merge(variants map[string]Variant) {
	if m.Variants == nil {
		m.Variants = map[string]Variant{}
	}
	for label, v := range variants {
		m.Variants[label] = v
	}
}

func (m *Manifest) Lookup(label string) (Variant, error) {
	v, ok := m.Variants[label]
	if !ok {
		return Variant{}, fmt.Errorf("%s: %w", label, ErrUnknownVariant)
	}
	return v, nil
}

func (m *Manifest) Labels() []string {
	labels := make([]string, 0, len(m.Variants))
	for label := range m.Variants {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Checksum 文件内容的 xxhash64, 16 位十六进制
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// Verify 比较文件与记录的校验值
func Verify(path string, v Variant) error {
	sum, err := Checksum(path)
	if err != nil {
		return err
	}
	if sum != v.Checksum {
		return fmt.Errorf("%s: expected %s, got %s: %w", filepath.Base(path), v.Checksum, sum, ErrChecksumMismatch)
	}
	return nil
}
