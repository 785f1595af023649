/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// Package ports holds the fixed port numbers the simulator uses and the
// BPF filters derived from them.
package ports

const (
	// UDP is the game UDP port (P_UDP).
	UDP = 3022
	// TCP is the game TCP port (P_TCP).
	TCP = 3023
	// Companion is the companion-app TCP port (P_COMPANION).
	Companion = 21587
)

// Filter returns the BPF filter for a capture session. Companion capture
// widens the filter to also match the companion-app TCP lane.
func Filter(companion bool) string {
	base := "udp port 3022 or tcp port 3023"
	if companion {
		return base + " or tcp port 21587"
	}
	return base
}
