// Package enrich joins envelopes with static reference (CMDB) metadata.
package enrich

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/model"
)

// Reference - source_id별 태그. 시작 시 한 번 로드하고 이후 읽기만 한다.
type Reference struct {
	Sources map[string]map[string]string `yaml:"sources"`
}

// LoadReference - yaml reference 파일 로드
// 파일이 없으면 빈 reference로 동작한다.
func LoadReference(path string) (*Reference, error) {
	ref := &Reference{Sources: map[string]map[string]string{}}
	if path == "" {
		return ref, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("[Enricher] reference file %s not found, enrichment disabled", path)
			return ref, nil
		}
		return nil, fmt.Errorf("read reference: %w", err)
	}
	if err := yaml.Unmarshal(data, ref); err != nil {
		return nil, fmt.Errorf("parse reference %s: %w", path, err)
	}
	if ref.Sources == nil {
		ref.Sources = map[string]map[string]string{}
	}
	return ref, nil
}

// Lookup - source_id로 찾고, 없으면 host 태그로 찾는다
func (r *Reference) Lookup(env model.Envelope) (map[string]string, bool) {
	if r == nil {
		return nil, false
	}
	if tags, ok := r.Sources[env.SourceID]; ok {
		return tags, true
	}
	if host := env.Tags["host"]; host != "" {
		tags, ok := r.Sources[host]
		return tags, ok
	}
	return nil, false
}

// Enrich - reference 태그를 합친 복사본 반환. 같은 키는 envelope 자신의 태그가 우선한다.
func (r *Reference) Enrich(env model.Envelope) model.Envelope {
	out := env
	ref, ok := r.Lookup(env)
	if !ok {
		out.Tags = model.CloneTags(env.Tags)
		return out
	}

	tags := make(map[string]string, len(ref)+len(env.Tags))
	for k, v := range ref {
		tags[k] = v
	}
	for k, v := range env.Tags {
		tags[k] = v
	}
	out.Tags = tags
	return out
}

// Len - 등록된 source 수
func (r *Reference) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Sources)
}
