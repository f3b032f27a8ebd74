// Package wasmtest assembles tiny WebAssembly guests for tests.
//
// Guests import the process manager's "os" host module and call its
// functions from the module's start section, mirroring how a wrapped
// module's bridging code talks to the process manager.
package wasmtest

import "encoding/binary"

const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secMemory   = 5
	secExport   = 7
	secStart    = 8
	secCode     = 10
	secData     = 11

	opCall     = 0x10
	opDrop     = 0x1a
	opI32Const = 0x41
	opEnd      = 0x0b
)

var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Empty is the smallest valid module.
var Empty = append([]byte(nil), header...)

// Memory is a module exporting one page of linear memory as "memory".
var Memory = Guest()

// Guest returns a module with one exported page of memory whose start
// function calls each named "os" import in order, discarding the i32
// results. Repeating a name repeats the call.
func Guest(calls ...string) []byte {
	var imports []string
	index := map[string]int{}
	for _, c := range calls {
		if _, ok := index[c]; !ok {
			index[c] = len(imports)
			imports = append(imports, c)
		}
	}

	out := append([]byte(nil), header...)

	if len(calls) > 0 {
		types := uleb(2)
		types = append(types, 0x60, 0x00, 0x01, 0x7f) // () -> i32
		types = append(types, 0x60, 0x00, 0x00)       // () -> ()
		out = append(out, section(secType, types)...)

		imps := uleb(len(imports))
		for _, name := range imports {
			imps = append(imps, str("os")...)
			imps = append(imps, str(name)...)
			imps = append(imps, 0x00)
			imps = append(imps, uleb(0)...)
		}
		out = append(out, section(secImport, imps)...)

		out = append(out, section(secFunction, append(uleb(1), uleb(1)...))...)
	}

	out = append(out, section(secMemory, memoryPage())...)
	out = append(out, section(secExport, exports(export{"memory", 0x02, 0}))...)

	if len(calls) > 0 {
		out = append(out, section(secStart, uleb(len(imports)))...)

		body := []byte{0x00}
		for _, c := range calls {
			body = append(body, opCall)
			body = append(body, uleb(index[c])...)
			body = append(body, opDrop)
		}
		body = append(body, opEnd)
		out = append(out, section(secCode, codeSection(body))...)
	}

	return out
}

// Program returns a WASI command module. Its start section registers the
// module with "os"; its _start export signals readiness, writes output to
// stdout and exits with code.
func Program(output string, code uint32) []byte {
	out := append([]byte(nil), header...)

	types := uleb(4)
	types = append(types, 0x60, 0x00, 0x01, 0x7f)                         // 0: () -> i32
	types = append(types, 0x60, 0x00, 0x00)                               // 1: () -> ()
	types = append(types, 0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f) // 2: fd_write
	types = append(types, 0x60, 0x01, 0x7f, 0x00)                         // 3: proc_exit
	out = append(out, section(secType, types)...)

	imps := uleb(4)
	for _, imp := range []struct {
		module, name string
		typ          int
	}{
		{"os", "set_module", 0},
		{"os", "init_runtime", 0},
		{"wasi_snapshot_preview1", "fd_write", 2},
		{"wasi_snapshot_preview1", "proc_exit", 3},
	} {
		imps = append(imps, str(imp.module)...)
		imps = append(imps, str(imp.name)...)
		imps = append(imps, 0x00)
		imps = append(imps, uleb(imp.typ)...)
	}
	out = append(out, section(secImport, imps)...)

	// Function 4 is the start-section registration, 5 is _start.
	out = append(out, section(secFunction, []byte{0x02, 0x01, 0x01})...)
	out = append(out, section(secMemory, memoryPage())...)
	out = append(out, section(secExport, exports(
		export{"memory", 0x02, 0},
		export{"_start", 0x00, 5},
	))...)
	out = append(out, section(secStart, uleb(4))...)

	register := []byte{0x00, opCall, 0x00, opDrop, opEnd}

	start := []byte{0x00, opCall, 0x01, opDrop}
	start = append(start, opI32Const, 0x01) // fd
	start = append(start, opI32Const, 0x00) // iovs
	start = append(start, opI32Const, 0x01) // iovs_len
	start = append(start, opI32Const, 0x08) // nwritten
	start = append(start, opCall, 0x02, opDrop)
	start = append(start, opI32Const)
	start = append(start, sleb(int64(int32(code)))...)
	start = append(start, opCall, 0x03, opEnd)

	code2 := uleb(2)
	code2 = append(code2, uleb(len(register))...)
	code2 = append(code2, register...)
	code2 = append(code2, uleb(len(start))...)
	code2 = append(code2, start...)
	out = append(out, section(secCode, code2)...)

	// iovec {buf: 16, len: n} at 0, nwritten at 8, bytes at 16.
	data := make([]byte, 16, 16+len(output))
	binary.LittleEndian.PutUint32(data[0:], 16)
	binary.LittleEndian.PutUint32(data[4:], uint32(len(output)))
	data = append(data, output...)

	seg := uleb(1)
	seg = append(seg, 0x00, opI32Const, 0x00, opEnd)
	seg = append(seg, uleb(len(data))...)
	seg = append(seg, data...)
	out = append(out, section(secData, seg)...)

	return out
}

type export struct {
	name  string
	kind  byte
	index int
}

func exports(es ...export) []byte {
	b := uleb(len(es))
	for _, e := range es {
		b = append(b, str(e.name)...)
		b = append(b, e.kind)
		b = append(b, uleb(e.index)...)
	}
	return b
}

func memoryPage() []byte {
	return []byte{0x01, 0x00, 0x01}
}

func codeSection(body []byte) []byte {
	b := uleb(1)
	b = append(b, uleb(len(body))...)
	return append(b, body...)
}

func section(id byte, content []byte) []byte {
	b := []byte{id}
	b = append(b, uleb(len(content))...)
	return append(b, content...)
}

func str(s string) []byte {
	return append(uleb(len(s)), s...)
}

func uleb(n int) []byte {
	v := uint64(n)
	var b []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

func sleb(v int64) []byte {
	var b []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		b = append(b, c)
		if done {
			return b
		}
	}
}
