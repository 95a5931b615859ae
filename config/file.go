package config

import (
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/ghodss/yaml"
	"github.com/mitchellh/mapstructure"
)

// FileNotFoundError denotes a missing configuration file.
type FileNotFoundError struct {
	name string
}

func (f FileNotFoundError) Error() string {
	return fmt.Sprintf("config file %q not found", f.name)
}

// KeyNotFoundError denotes a missing key within a configuration file.
type KeyNotFoundError struct {
	configFile string
	key        string
}

func (k KeyNotFoundError) Error() string {
	return fmt.Sprintf("key %q not found in config file %q", k.key, k.configFile)
}

// document abstracts the storage behind a File so the same keyed-YAML layer
// serves both plain and encrypted documents.
type document interface {
	Get() ([]byte, error)
	Set([]byte) error
}

// plainFile stores a document unencrypted on disk.
type plainFile struct {
	dirName  string
	fullPath string
}

func (p *plainFile) Get() ([]byte, error) {
	if !fileExists(p.fullPath) {
		return nil, FileNotFoundError{p.fullPath}
	}
	return os.ReadFile(p.fullPath)
}

func (p *plainFile) Set(b []byte) error {
	if !fileExists(p.fullPath) {
		if err := makeDir(p.dirName); err != nil {
			return err
		}
	}
	return os.WriteFile(p.fullPath, b, 0644)
}

// File is a keyed YAML document: a map of string keys to arbitrary values,
// decoded into caller structs via mapstructure. A missing file behaves like
// an empty document for reads of optional keys.
type File struct {
	FullPath     string
	data         map[string]interface{}
	dataIsLoaded bool
	doc          document
	mu           sync.Mutex
}

// NewFile creates a plain YAML file handle in the given directory.
func NewFile(dirName string, filename string) *File {
	full := path.Join(dirName, filename)
	return &File{
		FullPath: full,
		data:     make(map[string]interface{}),
		doc:      &plainFile{dirName: dirName, fullPath: full},
	}
}

// NewEncryptedYamlFile creates a YAML file handle whose bytes are stored via
// EncryptedFile.
func NewEncryptedYamlFile(dirName string, filename string) *File {
	full := path.Join(dirName, filename)
	return &File{
		FullPath: full,
		data:     make(map[string]interface{}),
		doc:      NewEncryptedFile(dirName, filename),
	}
}

// Get fetches the value at key into out (a pointer), decoding via mapstructure.
func (c *File) Get(key string, out interface{}) error {
	if err := c.ensureLoaded(); err != nil {
		return err
	}
	c.mu.Lock()
	d, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return KeyNotFoundError{c.FullPath, key}
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(d)
}

// Set stores val at key and persists the whole document.
func (c *File) Set(key string, val interface{}) error {
	if err := c.ensureLoaded(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
	return c.save()
}

// Delete removes the key and persists; a missing key is an error.
func (c *File) Delete(key string) error {
	if err := c.ensureLoaded(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; !ok {
		return KeyNotFoundError{c.FullPath, key}
	}
	delete(c.data, key)
	return c.save()
}

// GetAllKeys lists the keys currently in the document.
func (c *File) GetAllKeys() ([]string, error) {
	if err := c.ensureLoaded(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// save marshals and writes the document. Callers hold c.mu.
func (c *File) save() error {
	b, err := yaml.Marshal(c.data)
	if err != nil {
		return fmt.Errorf("error marshalling config file %v: %v", c.FullPath, err)
	}
	return c.doc.Set(b)
}

func (c *File) ensureLoaded() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dataIsLoaded {
		return nil
	}
	b, err := c.doc.Get()
	if err != nil {
		if _, ok := err.(FileNotFoundError); ok { // a missing file is an empty document...
			c.dataIsLoaded = true
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(b, &c.data); err != nil {
		return err
	}
	if c.data == nil {
		c.data = make(map[string]interface{})
	}
	c.dataIsLoaded = true
	return nil
}
