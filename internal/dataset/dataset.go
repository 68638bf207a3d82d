// Package dataset reads and writes the JSON node and event files, generates
// synthetic datasets and exports estimated origins.
//
// Node file:
//
//	{"node1": {"latitude": 6, "longitude": 8}, ...}
//
// Event file, timestamps in milliseconds:
//
//	{"1": [{"node1": 1700000000000}, {"node2": 1700000000500}], ...}
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/okian/tdoa/internal/domain/model"
	"github.com/okian/tdoa/internal/domain/types"
)

type nodeLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ReadNodes decodes a node file.
func ReadNodes(r io.Reader) (model.NodeTable, error) {
	var raw map[string]nodeLocation
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: nodes: %w", ErrReadDataset, err)
	}
	table := make(model.NodeTable, len(raw))
	for key, loc := range raw {
		id, err := types.ParseNodeKey(key)
		if err != nil {
			return nil, fmt.Errorf("%w: nodes: %w", ErrReadDataset, err)
		}
		if _, dup := table[id]; dup {
			return nil, fmt.Errorf("%w: nodes: node %d listed twice", ErrReadDataset, id)
		}
		table[id] = model.Coordinate{Latitude: loc.Latitude, Longitude: loc.Longitude}
	}
	return table, nil
}

// WriteNodes encodes nodes in id order.
func WriteNodes(w io.Writer, nodes model.NodeTable) error {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, id := range model.SortedNodeIDs(nodes) {
		c := nodes[id]
		if err := writeEntry(&buf, i, types.NodeKey(id), nodeLocation{Latitude: c.Latitude, Longitude: c.Longitude}); err != nil {
			return fmt.Errorf("%w: nodes: %w", ErrWriteDataset, err)
		}
	}
	buf.WriteString("\n}\n")
	return indentTo(w, buf.Bytes())
}

// ReadEvents decodes an event file into events sorted by id. An event with
// a malformed node key or a node listed twice is kept with its Err set.
func ReadEvents(r io.Reader) ([]model.Event, error) {
	var raw map[string][]map[string]int64
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: events: %w", ErrReadDataset, err)
	}
	events := make([]model.Event, 0, len(raw))
	for id, entries := range raw {
		events = append(events, types.ParseEvent(id, entries...))
	}
	model.SortEvents(events)
	return events, nil
}

// WriteEvents encodes events in the given order, one single-key object per
// node in id order.
func WriteEvents(w io.Writer, events []model.Event) error {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, ev := range events {
		ids := model.SortedNodeIDs(ev.Timestamps)
		entries := make([]map[string]int64, len(ids))
		for j, id := range ids {
			entries[j] = map[string]int64{types.NodeKey(id): ev.Timestamps[id]}
		}
		if err := writeEntry(&buf, i, string(ev.ID), entries); err != nil {
			return fmt.Errorf("%w: events: %w", ErrWriteDataset, err)
		}
	}
	buf.WriteString("\n}\n")
	return indentTo(w, buf.Bytes())
}

// LoadNodes reads a node file from disk.
func LoadNodes(path string) (model.NodeTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadDataset, err)
	}
	defer f.Close()
	return ReadNodes(f)
}

// SaveNodes writes a node file, replacing any existing one.
func SaveNodes(path string, nodes model.NodeTable) error {
	return save(path, func(w io.Writer) error { return WriteNodes(w, nodes) })
}

// LoadEvents reads an event file from disk.
func LoadEvents(path string) ([]model.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadDataset, err)
	}
	defer f.Close()
	return ReadEvents(f)
}

// SaveEvents writes an event file, replacing any existing one.
func SaveEvents(path string, events []model.Event) error {
	return save(path, func(w io.Writer) error { return WriteEvents(w, events) })
}

func save(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteDataset, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteDataset, err)
	}
	return nil
}

// writeEntry appends `"key": value` to an object under construction so keys
// keep the caller's order.
func writeEntry(buf *bytes.Buffer, i int, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if i > 0 {
		buf.WriteByte(',')
	}
	buf.WriteString("\n")
	buf.Write(k)
	buf.WriteString(": ")
	buf.Write(v)
	return nil
}

func indentTo(w io.Writer, src []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, src, "", "    "); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteDataset, err)
	}
	if _, err := out.WriteTo(w); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteDataset, err)
	}
	return nil
}
