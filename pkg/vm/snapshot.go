package vm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"nodlang/pkg/compiler"
	"nodlang/pkg/graph"
	"nodlang/pkg/lang"
)

var ErrSnapshotMismatch = errors.New("snapshot was taken from another program")

// snapshotState is the JSON form of a VM snapshot. Variables are keyed by
// the line of their push_var instruction, which is stable for a given
// program.
type snapshotState struct {
	Instructions int             `json:"instructions"`
	EIP          int             `json:"eip"`
	RAX          lang.Value      `json:"rax"`
	RDX          lang.Value      `json:"rdx"`
	Running      bool            `json:"running"`
	Debugging    bool            `json:"debugging"`
	NextNodeLine int             `json:"next_node_line"`
	LastStepLine int             `json:"last_step_line"`
	Variables    []snapshotValue `json:"variables"`
}

type snapshotValue struct {
	Line    int        `json:"line"`
	Name    string     `json:"name"`
	Value   lang.Value `json:"value"`
	Initial lang.Value `json:"initial"`
	Defined bool       `json:"defined"`
}

// Snapshot serializes the registers, the run state and the variables of
// the loaded program as zstd-compressed JSON.
func (v *VM) Snapshot() ([]byte, error) {
	if v.code == nil {
		return nil, ErrNoProgram
	}
	state := snapshotState{
		Instructions: v.code.Len(),
		EIP:          v.eip,
		RAX:          v.rax,
		RDX:          v.rdx,
		Running:      v.running,
		Debugging:    v.debugging,
		NextNodeLine: -1,
		LastStepLine: -1,
	}
	if v.lastStep != nil {
		state.LastStepLine = v.lastStep.Line
	}
	for _, in := range v.code.Instructions {
		switch {
		case in.Op == compiler.EvalNode && in.Node == v.nextNode && state.NextNodeLine < 0:
			state.NextNodeLine = in.Line
		case in.Op == compiler.PushVar:
			n := v.code.Graph.Node(in.Var)
			if n == nil {
				continue
			}
			st := v.variable(n)
			state.Variables = append(state.Variables, snapshotValue{
				Line:    in.Line,
				Name:    n.Name,
				Value:   n.Value().Value,
				Initial: st.initial,
				Defined: st.defined,
			})
		}
	}

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal vm state: %w", err)
	}
	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := encoder.Write(data); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}
	return compressed.Bytes(), nil
}

// Restore applies a snapshot taken by Snapshot to the loaded program.
func (v *VM) Restore(data []byte) error {
	if v.code == nil {
		return ErrNoProgram
	}
	decoder, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()
	raw, err := io.ReadAll(decoder)
	if err != nil {
		return fmt.Errorf("decompressing: %w", err)
	}

	var state snapshotState
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("unmarshal vm state: %w", err)
	}
	if state.Instructions != v.code.Len() {
		return fmt.Errorf("%w: %d instructions, loaded program has %d", ErrSnapshotMismatch, state.Instructions, v.code.Len())
	}
	for _, sv := range state.Variables {
		in := v.code.At(sv.Line)
		if in == nil || in.Op != compiler.PushVar {
			return fmt.Errorf("%w: line %d is not a declaration", ErrSnapshotMismatch, sv.Line)
		}
		n := v.code.Graph.Node(in.Var)
		if n == nil || n.Name != sv.Name {
			return fmt.Errorf("%w: variable %q", ErrSnapshotMismatch, sv.Name)
		}
		n.Value().Value = sv.Value
		v.vars[in.Var] = &variable{initial: sv.Initial, defined: sv.Defined}
	}

	v.eip = state.EIP
	v.rax, v.rdx = state.RAX, state.RDX
	v.running, v.debugging = state.Running, state.Debugging
	v.lastStep = v.code.At(state.LastStepLine)
	v.nextNode = graph.NodeID{}
	if v.debugging {
		v.nextNode = v.code.Root
		if in := v.code.At(state.NextNodeLine); in != nil {
			v.nextNode = in.Node
		}
	}
	return nil
}
