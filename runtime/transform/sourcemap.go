package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-sourcemap/sourcemap"
	jsoniter "github.com/json-iterator/go"
)

// SourceMaps the source maps of the transformed files
var SourceMaps = &Maps{data: map[string]*sourcemap.Consumer{}}

// reStackEntry matches the v8 and goja stack frames
var reStackEntry = regexp.MustCompile(`at[ ]+(?:(?P<Function>[^(]+?)[ ]+)?\((?P<File>[^:()]+):(?P<Line>\d+):(?P<Column>\d+)(?:\(\d+\))?\)`)

// Maps the source map store
type Maps struct {
	mutex sync.RWMutex
	data  map[string]*sourcemap.Consumer
}

// SourceMap the source map head
type SourceMap struct {
	Version  int      `json:"version"`
	File     string   `json:"file"`
	Sources  []string `json:"sources"`
	Mappings string   `json:"mappings"`
}

// StackLogEntry stack log entry
type StackLogEntry struct {
	Function string `json:"function,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

// Add add the source map of the file
func (maps *Maps) Add(file string, data []byte) error {
	var head SourceMap
	if err := jsoniter.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("invalid source map of %s: %s", file, err.Error())
	}

	if head.Mappings == "" {
		maps.Remove(file)
		return nil
	}

	consumer, err := sourcemap.Parse(file, data)
	if err != nil {
		return fmt.Errorf("invalid source map of %s: %s", file, err.Error())
	}

	maps.mutex.Lock()
	defer maps.mutex.Unlock()
	maps.data[file] = consumer
	return nil
}

// Remove remove the source map of the file
func (maps *Maps) Remove(file string) {
	maps.mutex.Lock()
	defer maps.mutex.Unlock()
	delete(maps.data, file)
}

// Has check if the file has a source map
func (maps *Maps) Has(file string) bool {
	maps.mutex.RLock()
	defer maps.mutex.RUnlock()
	_, has := maps.data[file]
	return has
}

// Map map a position of the compiled file to the source
func (maps *Maps) Map(entry *StackLogEntry) bool {
	maps.mutex.RLock()
	consumer, has := maps.data[entry.File]
	maps.mutex.RUnlock()
	if !has {
		return false
	}

	file, fn, line, col, ok := consumer.Source(entry.Line, entry.Column)
	if !ok {
		return false
	}

	entry.File = file
	entry.Line = line
	entry.Column = col
	if fn != "" {
		entry.Function = fn
	}
	return true
}

// MapStack rewrite the frames of a stack trace that point into the
// transformed files, the other lines are kept
func MapStack(trace string) string {
	lines := strings.Split(trace, "\n")
	for i, line := range lines {
		match := reStackEntry.FindStringSubmatchIndex(line)
		if match == nil {
			continue
		}

		entry := &StackLogEntry{File: line[match[4]:match[5]]}
		if match[2] >= 0 {
			entry.Function = line[match[2]:match[3]]
		}
		entry.Line, _ = strconv.Atoi(line[match[6]:match[7]])
		entry.Column, _ = strconv.Atoi(line[match[8]:match[9]])

		if !SourceMaps.Map(entry) {
			continue
		}
		lines[i] = line[:match[0]] + entry.String() + line[match[1]:]
	}
	return strings.Join(lines, "\n")
}

func (entry *StackLogEntry) String() string {
	if entry.Function == "" {
		return fmt.Sprintf("at %s:%d:%d", entry.File, entry.Line, entry.Column)
	}
	return fmt.Sprintf("at %s (%s:%d:%d)", entry.Function, entry.File, entry.Line, entry.Column)
}
