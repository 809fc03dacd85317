package bank

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type FileSource struct {
	Path string
}

type fileDocument struct {
	Title     string      `yaml:"title" json:"title"`
	Questions []blockItem `yaml:"questions" json:"questions"`
}

// blockItem accepts either a raw block string or a {question, answers} entry.
type blockItem struct {
	block string
}

func (b *blockItem) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&b.block)
	}
	var e Entry
	if err := value.Decode(&e); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	b.block = e.Block()
	return nil
}

func (b *blockItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &b.block)
	}
	var e Entry
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	b.block = e.Block()
	return nil
}

func (s FileSource) Load(ctx context.Context) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(s.Path))
	if ext == ".xlsx" {
		return ExcelSource{Path: s.Path}.Load(ctx)
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return Decode(s.Path, data)
}

func Decode(name string, data []byte) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".yaml", ".yml":
		return parseYAML(data)
	case ".json":
		return parseJSON(data)
	case ".txt":
		return parseText(data)
	case ".xlsx":
		return ReadExcel(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseYAML(data []byte) ([]string, error) {
	var doc fileDocument
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("parse yaml: multiple documents are not supported")
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return doc.blocks(), nil
}

func parseJSON(data []byte) ([]string, error) {
	var doc fileDocument
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("parse json: multiple documents are not supported")
		}
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return doc.blocks(), nil
}

func parseText(data []byte) ([]string, error) {
	var (
		blocks  []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read text bank: %w", err)
	}
	flush()
	return blocks, nil
}

func (d fileDocument) blocks() []string {
	out := make([]string, 0, len(d.Questions))
	for _, q := range d.Questions {
		out = append(out, q.block)
	}
	return out
}

func DiscoverDir(dir string) (map[string]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read bank dir: %w", err)
	}

	out := make(map[string]Source)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		switch ext {
		case ".yaml", ".yml", ".json", ".txt", ".xlsx":
		default:
			continue
		}
		name := normalizeName(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		out[name] = FileSource{Path: filepath.Join(dir, e.Name())}
	}
	return out, nil
}
