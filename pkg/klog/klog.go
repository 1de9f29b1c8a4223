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

// Package klog is the kernel core's structured logger, replacing the
// original C kernel's printk/syslog(KERN_NOTIFY, ...) call sites with
// logrus fields.
package klog

import (
	"github.com/sirupsen/logrus"
)

var std = logrus.New()

// SetLevel adjusts the minimum logged severity.
func SetLevel(level logrus.Level) {
	std.SetLevel(level)
}

// Warn logs a ref-count underflow or similarly non-fatal kernel warning.
// The original's "%1V" printk priority ("warning") maps to logrus.Warn.
func Warn(msg string, fields logrus.Fields) {
	std.WithFields(fields).Warn(msg)
}

// Notice logs a KERN_NOTIFY-level event, such as a completed mount or a
// module load.
func Notice(msg string, fields logrus.Fields) {
	std.WithFields(fields).Info(msg)
}

// Error logs a KERN_ERROR-level event ("%2V" in the original printk).
func Error(msg string, fields logrus.Fields) {
	std.WithFields(fields).Error(msg)
}
