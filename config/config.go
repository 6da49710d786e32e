/*
 * ani-core - Demo machine configuration file parser
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package config parses the demo CLI's machine description file: one
// directive per line, '#' starts a comment that runs to end of line.
//
//	map  <name> base=<hex> size=<hex|dec|nK|nM> prot=<r?w?x?>
//	load <name> base=<hex> file=<path>
//	cpu  <name> arch=<r2000|sys161|vr4300> endian=<little|big> pc=<hex>
//
// A <name> is only used in error messages. The demo CLI installs every
// map before any load, so a load's base must fall inside one of the
// file's maps wherever that map appears.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// MapEntry describes one AddMappableRange call the demo CLI should make.
type MapEntry struct {
	Name string
	Base uint64
	Size uint64
	Prot string // subset of "rwx", e.g. "rx", "rwx"
}

// LoadEntry describes one SetRange call the demo CLI should make,
// reading File's contents in full.
type LoadEntry struct {
	Name string
	Base uint64
	File string
}

// CpuEntry describes one RegisterCpu call the demo CLI should make.
type CpuEntry struct {
	Name   string
	Arch   string // "r2000", "sys161", or "vr4300"
	Endian string // "little" or "big"
	Pc     uint64
}

// Config is the fully parsed contents of a machine description file.
type Config struct {
	Maps  []MapEntry
	Loads []LoadEntry
	Cpus  []CpuEntry
}

// Load reads and parses the machine description file named path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(f)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		if err := parseLine(cfg, scanner.Text()); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseLine(cfg *Config, raw string) error {
	line := stripComment(raw)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	directive := strings.ToLower(fields[0])
	rest := fields[1:]
	if len(rest) == 0 {
		return fmt.Errorf("directive %q has no name", directive)
	}
	name := rest[0]
	kv, err := parseKeyValues(rest[1:])
	if err != nil {
		return err
	}

	switch directive {
	case "map":
		base, err := parseHexOrDec(kv["base"])
		if err != nil {
			return fmt.Errorf("map %s: base: %w", name, err)
		}
		size, err := parseHexOrDec(kv["size"])
		if err != nil {
			return fmt.Errorf("map %s: size: %w", name, err)
		}
		prot := kv["prot"]
		if prot == "" {
			prot = "rwx"
		}
		cfg.Maps = append(cfg.Maps, MapEntry{Name: name, Base: base, Size: size, Prot: prot})

	case "load":
		base, err := parseHexOrDec(kv["base"])
		if err != nil {
			return fmt.Errorf("load %s: base: %w", name, err)
		}
		file := kv["file"]
		if file == "" {
			return fmt.Errorf("load %s: missing file=", name)
		}
		cfg.Loads = append(cfg.Loads, LoadEntry{Name: name, Base: base, File: file})

	case "cpu":
		pc, err := parseHexOrDec(kv["pc"])
		if err != nil {
			return fmt.Errorf("cpu %s: pc: %w", name, err)
		}
		arch := strings.ToLower(kv["arch"])
		if arch == "" {
			return fmt.Errorf("cpu %s: missing arch=", name)
		}
		endian := strings.ToLower(kv["endian"])
		if endian == "" {
			endian = "big"
		}
		cfg.Cpus = append(cfg.Cpus, CpuEntry{Name: name, Arch: arch, Endian: endian, Pc: pc})

	default:
		return fmt.Errorf("unknown directive %q", directive)
	}
	return nil
}

// stripComment truncates raw at the first '#'.
func stripComment(raw string) string {
	for i, r := range raw {
		if r == '#' {
			return raw[:i]
		}
	}
	return raw
}

// parseKeyValues splits a run of "key=value" fields into a lookup map.
func parseKeyValues(fields []string) (map[string]string, error) {
	kv := make(map[string]string, len(fields))
	for _, f := range fields {
		eq := strings.IndexByte(f, '=')
		if eq < 0 {
			return nil, fmt.Errorf("malformed option %q, want key=value", f)
		}
		kv[strings.ToLower(f[:eq])] = f[eq+1:]
	}
	return kv, nil
}

// parseHexOrDec accepts "0x"-prefixed hex, a trailing K/M byte-count
// suffix, or plain decimal.
func parseHexOrDec(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("missing value")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	last := s[len(s)-1]
	if unicode.ToUpper(rune(last)) == 'K' || unicode.ToUpper(rune(last)) == 'M' {
		n, err := strconv.ParseUint(s[:len(s)-1], 10, 64)
		if err != nil {
			return 0, err
		}
		if unicode.ToUpper(rune(last)) == 'K' {
			return n * 1024, nil
		}
		return n * 1024 * 1024, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
