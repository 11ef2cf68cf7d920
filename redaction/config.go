package redaction

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML rules file:
//
//	patient_names:
//	  - Wing L Ho
//	disable:
//	  - zip
//	rules:
//	  - name: employee_id
//	    pattern: 'EMP-\d{6}'
//	    placeholder: '[EMPLOYEE ID]'
//	    priority: 845
type FileConfig struct {
	PatientNames []string `yaml:"patient_names"`
	Disable      []string `yaml:"disable"`
	Rules        []Rule   `yaml:"rules"`
}

// LoadFile reads and parses a rules file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses rules file content. Unknown keys are rejected so a
// misspelled "pattern" does not silently produce an empty rule.
func ParseConfig(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return &cfg, nil
}

// BuildRules assembles the full rule list: identity rules for names plus
// any names in file, the default generic rules minus file.Disable, then the
// file's own rules. file may be nil.
func BuildRules(names []string, file *FileConfig) []Rule {
	allNames := append([]string(nil), names...)
	disabled := make(map[string]bool)
	var extra []Rule
	if file != nil {
		allNames = append(allNames, file.PatientNames...)
		for _, d := range file.Disable {
			disabled[strings.TrimSpace(d)] = true
		}
		for _, r := range file.Rules {
			r.Class = ClassGeneric
			extra = append(extra, r)
		}
	}

	rules := IdentityRules(allNames)
	for _, r := range DefaultRules() {
		if !disabled[r.Name] {
			rules = append(rules, r)
		}
	}
	return append(rules, extra...)
}
