// SPDX-License-Identifier: MIT
package render

import "lumen/internal/controls"

// Audio-derived and timing uniforms. Controls follow from ControlsOffset in
// controls.Fields order.
const (
	URMSZ = iota
	UBPM
	UEnergy
	UOnset
	ULastBeatTime
	UTone
	ULowBand
	UTime
	UResX
	UResY

	ControlsOffset
)

// UniformCount is the size of the uniform block.
const UniformCount = ControlsOffset + controls.Count

// Uniforms is the packed block handed to a shader, one float32 per field.
type Uniforms [UniformCount]float32

// UniformNames returns the field name for each index.
func UniformNames() []string {
	names := []string{"rmsZ", "bpm", "energy", "onset", "lastBeatTime", "tone", "lowBand", "time", "resX", "resY"}
	for _, f := range controls.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Control returns the uniform of the named control.
func (u *Uniforms) Control(name string) (float32, bool) {
	for i, f := range controls.Fields {
		if f.Name == name {
			return u[ControlsOffset+i], true
		}
	}
	return 0, false
}

type audioState struct {
	rmsZ, bpm, energy, lastBeat, tone, lowBand, onsetEnv float64
}

func pack(u *Uniforms, a audioState, simTime float64, width, height int, c *controls.Controls) {
	u[URMSZ] = float32(a.rmsZ)
	u[UBPM] = float32(a.bpm)
	u[UEnergy] = float32(a.energy)
	u[UOnset] = float32(a.onsetEnv)
	u[ULastBeatTime] = float32(a.lastBeat)
	u[UTone] = float32(a.tone)
	u[ULowBand] = float32(a.lowBand)
	u[UTime] = float32(simTime)
	u[UResX] = float32(width)
	u[UResY] = float32(height)
	for i, v := range c.Values() {
		u[ControlsOffset+i] = float32(v)
	}
}
