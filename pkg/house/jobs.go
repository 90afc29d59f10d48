package house

import (
	"fmt"
	"strconv"
	"strings"
)

const ExteriorFilename = "exterior.png"

// RoomJob builds the render job for one room. Prompt and filename depend only
// on the floor number and the room spec.
func RoomJob(floorNumber int, room RoomSpec) RenderJob {
	prompt := fmt.Sprintf(
		"Realistic interior render of a %s %sft by %sft, %s, furnished, daylight",
		room.Name, formatFeet(room.WidthFt), formatFeet(room.LengthFt), room.Style,
	)
	return RenderJob{
		Target:         RenderTarget{Floor: floorNumber, Room: room.Name},
		Prompt:         prompt,
		TargetFilename: RoomFilename(floorNumber, room.Name),
	}
}

// ExteriorJob builds the single exterior render job.
func ExteriorJob(exteriorStyle string) RenderJob {
	return RenderJob{
		Target:         RenderTarget{Exterior: true},
		Prompt:         fmt.Sprintf("Exterior view of a %s, daylight, realistic", exteriorStyle),
		TargetFilename: ExteriorFilename,
	}
}

// filenameReplacer maps spaces, path separators and ".." to underscores so a
// room name always yields a single file name.
var filenameReplacer = strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "..", "_")

// RoomFilename returns floor{N}_{Room_Name}.png. The name never contains a
// path separator or "..".
func RoomFilename(floorNumber int, roomName string) string {
	return fmt.Sprintf("floor%d_%s.png", floorNumber, filenameReplacer.Replace(roomName))
}

// Jobs lists every job for plan in render order: floors in order, rooms in
// order, exterior last.
func Jobs(plan HousePlan) []RenderJob {
	jobs := make([]RenderJob, 0, plan.RoomCount()+1)
	for _, floor := range plan.Floors {
		for _, room := range floor.Rooms {
			jobs = append(jobs, RoomJob(floor.FloorNumber, room))
		}
	}
	return append(jobs, ExteriorJob(plan.ExteriorStyle))
}

// formatFeet prints 12 as "12" and 12.5 as "12.5".
func formatFeet(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
