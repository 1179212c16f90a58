package dbc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Database holds the message definitions parsed from one DBC file.
type Database struct {
	Name     string
	Messages []*Message
}

const extendedIDFlag = 0x80000000

var (
	sgPattern  = regexp.MustCompile(`^SG_\s+(\w+)\s*(?:[mM]\d*\s*)?:\s*(\d+)\|(\d+)@([01])([+-])\s*\(([^,]+),([^)]+)\)\s*\[([^|]*)\|([^\]]*)\]\s*"([^"]*)"`)
	valPattern = regexp.MustCompile(`^VAL_\s+(\d+)\s+(\w+)\s+(.*?)\s*;?\s*$`)
	valPair    = regexp.MustCompile(`(-?\d+)\s+"([^"]*)"`)
)

// ParseDatabase reads DBC text and returns the messages it defines. Only the
// constructs needed for decoding are interpreted: BO_ message headers, SG_
// signal definitions and VAL_ value tables. Everything else is skipped.
func ParseDatabase(name string, r io.Reader) (*Database, error) {
	db := &Database{Name: name}
	byID := make(map[uint32]*Message)
	var current *Message

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "BO_ "):
			msg, err := parseMessageLine(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			db.Messages = append(db.Messages, msg)
			byID[msg.ID] = msg
			current = msg
		case strings.HasPrefix(line, "SG_ "):
			if current == nil {
				return nil, fmt.Errorf("line %d: signal outside message block", lineNo)
			}
			sig, err := parseSignalLine(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current.Signals = append(current.Signals, sig)
		case strings.HasPrefix(line, "VAL_ "):
			// Value tables appear after all message blocks.
			if err := applyValueTable(line, byID); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current = nil
		case line == "":
			current = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return db, nil
}

func parseMessageLine(line string) (*Message, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return nil, fmt.Errorf("malformed message definition %q", line)
	}
	rawID, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("message id %q: %w", fields[1], err)
	}
	name := strings.TrimSuffix(fields[2], ":")
	sizeField := fields[3]
	if name == fields[2] && sizeField == ":" && len(fields) >= 5 {
		sizeField = fields[4]
	}
	length, err := strconv.Atoi(sizeField)
	if err != nil {
		return nil, fmt.Errorf("message length %q: %w", sizeField, err)
	}
	id := uint32(rawID)
	if id&extendedIDFlag != 0 {
		// Extended 29-bit id; the flag bit never appears on the bus.
		id &= 0x1FFFFFFF
	}
	return &Message{ID: id, Name: name, Length: length}, nil
}

func parseSignalLine(line string) (*Signal, error) {
	m := sgPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("malformed signal definition %q", line)
	}
	start, _ := strconv.Atoi(m[2])
	size, _ := strconv.Atoi(m[3])
	factor, err := strconv.ParseFloat(strings.TrimSpace(m[6]), 64)
	if err != nil {
		return nil, fmt.Errorf("signal factor %q: %w", m[6], err)
	}
	offset, err := strconv.ParseFloat(strings.TrimSpace(m[7]), 64)
	if err != nil {
		return nil, fmt.Errorf("signal offset %q: %w", m[7], err)
	}
	min, _ := strconv.ParseFloat(strings.TrimSpace(m[8]), 64)
	max, _ := strconv.ParseFloat(strings.TrimSpace(m[9]), 64)
	order := BigEndian
	if m[4] == "1" {
		order = LittleEndian
	}
	return &Signal{
		Name:   m[1],
		Start:  start,
		Size:   size,
		Order:  order,
		Signed: m[5] == "-",
		Factor: factor,
		Offset: offset,
		Min:    min,
		Max:    max,
		Unit:   m[10],
	}, nil
}

func applyValueTable(line string, byID map[uint32]*Message) error {
	m := valPattern.FindStringSubmatch(line)
	if m == nil {
		// VAL_ lines referencing value table names (VAL_TABLE_) are not
		// needed for decoding.
		return nil
	}
	rawID, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return fmt.Errorf("value table id %q: %w", m[1], err)
	}
	id := uint32(rawID)
	if id&extendedIDFlag != 0 {
		id &= 0x1FFFFFFF
	}
	msg, ok := byID[id]
	if !ok {
		return nil
	}
	sig, ok := msg.SignalByName(m[2])
	if !ok {
		return nil
	}
	pairs := valPair.FindAllStringSubmatch(m[3], -1)
	if len(pairs) == 0 {
		return nil
	}
	if sig.Choices == nil {
		sig.Choices = make(map[int64]string, len(pairs))
	}
	for _, p := range pairs {
		code, err := strconv.ParseInt(p[1], 10, 64)
		if err != nil {
			return fmt.Errorf("value table code %q: %w", p[1], err)
		}
		sig.Choices[code] = p[2]
	}
	return nil
}

// FrameEntry binds a decodable message to the definition file that owns it.
type FrameEntry struct {
	Message *Message
	Catalog string
}

// Catalog aggregates the message definitions of one or more DBC files and
// answers the two lookups the pipeline needs: frame id to message, and
// signal key to unit.
type Catalog struct {
	frames  map[uint32]FrameEntry
	units   map[SignalKey]string
	signals int
}

func NewCatalog() *Catalog {
	return &Catalog{
		frames: make(map[uint32]FrameEntry),
		units:  make(map[SignalKey]string),
	}
}

// Add merges one database into the catalog. A frame id defined by several
// files resolves to the last file added.
func (c *Catalog) Add(db *Database) {
	for _, msg := range db.Messages {
		c.frames[msg.ID] = FrameEntry{Message: msg, Catalog: db.Name}
		for _, sig := range msg.Signals {
			key := SignalKey{Catalog: db.Name, Message: msg.Name, Signal: sig.Name}
			c.units[key] = sig.Unit
			c.signals++
		}
	}
}

// Frame returns the message bound to a frame id.
func (c *Catalog) Frame(id uint32) (FrameEntry, bool) {
	e, ok := c.frames[id]
	return e, ok
}

// Unit returns the physical unit string for a signal, empty if unknown.
func (c *Catalog) Unit(k SignalKey) string {
	return c.units[k]
}

func (c *Catalog) MessageCount() int { return len(c.frames) }

func (c *Catalog) SignalCount() int { return c.signals }

// LoadCatalog parses every definition file into one catalog. Any failure is
// fatal: no partial catalog is ever returned.
func LoadCatalog(paths []string) (*Catalog, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no definition files given")
	}
	catalog := NewCatalog()
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", path, err)
		}
		db, err := ParseDatabase(filepath.Base(path), f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", path, err)
		}
		catalog.Add(db)
	}
	return catalog, nil
}
