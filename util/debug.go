// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"bytes"
	"debug/elf"
	"debug/gosym"
	"errors"
	"fmt"
)

// Symbols resolves program counters of a Go ELF image, it is used to trace
// Normal World faults.
type Symbols struct {
	table *gosym.Table
}

// NewSymbols parses the Go symbol table of an ELF image.
func NewSymbols(buf []byte) (s *Symbols, err error) {
	exe, err := elf.NewFile(bytes.NewReader(buf))

	if err != nil {
		return
	}

	text := exe.Section(".text")
	pcln := exe.Section(".gopclntab")

	if text == nil || pcln == nil {
		return nil, errors.New("missing Go symbol sections")
	}

	lineTableData, err := pcln.Data()

	if err != nil {
		return
	}

	var symTableData []byte

	if sym := exe.Section(".gosymtab"); sym != nil {
		if symTableData, err = sym.Data(); err != nil {
			return
		}
	}

	table, err := gosym.NewTable(symTableData, gosym.NewLineTable(lineTableData, text.Addr))

	if err != nil {
		return
	}

	return &Symbols{table: table}, nil
}

// PCToLine returns the source location of pc, or an empty string when pc is
// not within the image.
func (s *Symbols) PCToLine(pc uint64) string {
	if s == nil {
		return ""
	}

	file, line, fn := s.table.PCToLine(pc)

	if fn == nil {
		return ""
	}

	return fmt.Sprintf("%s:%d %s", file, line, fn.Name)
}
