//
// pipe_test.go
//
// Copyright (c) 2023-2026 Markku Rossi
//
// All rights reserved.
//

package ot

import (
	"bytes"
	"fmt"
	"io"
	"testing"
)

func TestPipe(t *testing.T) {
	var tests = []interface{}{
		MakeLabel(0x0102030405060708, 0x1112131415161718),
		42,
		[]byte("Hello, world!"),
		make([]byte, 200*1024),
	}

	pipe, rPipe := NewPipe()
	done := make(chan error)

	go func(pipe *Pipe) {
		var ld LabelData
		for _, test := range tests {
			switch v := test.(type) {
			case Label:
				var val Label
				if err := pipe.ReceiveLabel(&val, &ld); err != nil {
					done <- err
					return
				}
				if !val.Equal(v) {
					done <- fmt.Errorf("ReceiveLabel: mismatch: %v != %v",
						val, v)
					return
				}

			case int:
				val, err := pipe.ReceiveUint32()
				if err != nil {
					done <- err
					return
				}
				if val != v {
					done <- fmt.Errorf("ReceiveUint32: mismatch: %v != %v",
						val, v)
					return
				}

			case []byte:
				data, err := pipe.ReceiveData()
				if err != nil {
					done <- err
					return
				}
				if !bytes.Equal(data, v) {
					done <- fmt.Errorf("ReceiveData: mismatch: %x != %x",
						data, v)
					return
				}

			default:
				panic(fmt.Sprintf("receive %v(%T) not supported", v, v))
			}
		}
		_, err := pipe.ReceiveUint32()
		if err != io.EOF {
			done <- fmt.Errorf("expected EOF, got %v", err)
			return
		}
		done <- nil
	}(rPipe)

	var ld LabelData
	for _, test := range tests {
		switch v := test.(type) {
		case Label:
			if err := pipe.SendLabel(v, &ld); err != nil {
				t.Errorf("SendLabel failed: %v", err)
			}

		case int:
			if err := pipe.SendUint32(v); err != nil {
				t.Errorf("SendUint32 failed: %v", err)
			}

		case []byte:
			if err := pipe.SendData(v); err != nil {
				t.Errorf("SendData failed: %v", err)
			}
		}
	}
	if err := pipe.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if err := <-done; err != nil {
		t.Errorf("consumer failed: %v", err)
	}
}
