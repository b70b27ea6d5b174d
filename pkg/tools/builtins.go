// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/resource"
	"github.com/jllopis/atlas/pkg/tool"
)

type describedTool interface {
	core.Tool
	Descriptor() tool.Descriptor
}

// RegisterBuiltins registers calculator, weather, file_read and file_list
// with their schemas, plus the news resource. An empty root skips the file
// tools.
func RegisterBuiltins(reg *tool.Registry, res *resource.Registry, root string) error {
	builtins := []describedTool{Calculator{}, Weather{}}
	if root != "" {
		files, err := NewFileRoot(root)
		if err != nil {
			return err
		}
		builtins = append(builtins, fileRead{files}, fileList{files})
	}
	for _, t := range builtins {
		reg.Register(t.Name(), t)
		if err := reg.UpdateConfig(t.Name(), t.Descriptor()); err != nil {
			return err
		}
	}
	if res != nil {
		res.Register(NewNews())
	}
	return nil
}
