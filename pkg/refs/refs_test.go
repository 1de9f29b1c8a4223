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

package refs

import "testing"

func TestCountBasic(t *testing.T) {
	var c Count
	c.Init(1)
	if got := c.Load(); got != 1 {
		t.Fatalf("Load() = %d, want 1", got)
	}
	c.IncRef()
	if got := c.Load(); got != 2 {
		t.Fatalf("Load() after IncRef = %d, want 2", got)
	}
	if zero := c.DecRef(nil); zero {
		t.Fatalf("DecRef reported zero at count 2")
	}
	if zero := c.DecRef(nil); !zero {
		t.Fatalf("DecRef did not report zero at count 1")
	}
}

func TestCountUnderflowWarns(t *testing.T) {
	var c Count
	c.Init(0)
	warned := false
	zero := c.DecRef(func() { warned = true })
	if zero {
		t.Fatalf("DecRef at zero should not itself report zero")
	}
	if !warned {
		t.Fatalf("DecRef at zero did not invoke onUnderflow")
	}
	if got := c.Load(); got != 0 {
		t.Fatalf("Load() after underflow = %d, want 0 (no negative count)", got)
	}
}
