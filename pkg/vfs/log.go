// Copyright 2024 The stewieos Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vfs

import (
	"github.com/Caleb1994/stewieos/pkg/klog"
	"github.com/sirupsen/logrus"
)

// klogRefWarning replaces the original's "printk warning: %s reference
// count is going negative" diagnostic (spec §4.1).
func klogRefWarning(entity string, id uint64) {
	klog.Warn("reference count is going negative", logrus.Fields{
		"entity": entity,
		"id":     id,
	})
}
