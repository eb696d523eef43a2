package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"cleanup-quest-bot/internal/model"
)

var errUsage = errors.New("usage")

// reportArgs is the parsed caption of a /report photo.
type reportArgs struct {
	Type        model.WasteType
	Priority    model.Priority
	Size        model.Size
	Latitude    float64
	Longitude   float64
	Description string
}

// captionArgs splits a photo caption into its command and arguments.
// The bot suffix of "/cmd@botname" is dropped.
func captionArgs(caption string) (string, []string) {
	fields := strings.Fields(caption)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd := fields[0]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd, fields[1:]
}

// parseReport reads <type> <priority> <size> [lat,lon] [description...].
func parseReport(args []string) (*reportArgs, error) {
	if len(args) < 3 {
		return nil, errUsage
	}

	out := &reportArgs{}
	var err error
	if out.Type, err = model.ParseWasteType(strings.ToLower(args[0])); err != nil {
		return nil, err
	}
	if out.Priority, err = model.ParsePriority(strings.ToLower(args[1])); err != nil {
		return nil, err
	}
	if out.Size, err = model.ParseSize(strings.ToLower(args[2])); err != nil {
		return nil, err
	}

	rest := args[3:]
	if len(rest) > 0 {
		if lat, lon, ok := parseCoords(rest[0]); ok {
			out.Latitude, out.Longitude = lat, lon
			rest = rest[1:]
		}
	}
	out.Description = strings.Join(rest, " ")
	return out, nil
}

func parseCoords(s string) (float64, float64, bool) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

// parseComplete reads <ticket_id> <partial|complete>.
func parseComplete(args []string) (string, model.CleaningStatus, error) {
	if len(args) != 2 {
		return "", "", errUsage
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return "", "", errUsage
	}
	status, err := model.ParseCleaningStatus(strings.ToLower(args[1]))
	if err != nil {
		return "", "", err
	}
	return id.String(), status, nil
}

// parseMissionProgress reads <mission_id> [amount], amount defaulting to 1.
func parseMissionProgress(args []string) (string, int, error) {
	if len(args) == 0 || len(args) > 2 {
		return "", 0, errUsage
	}
	amount := 1
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return "", 0, fmt.Errorf("amount must be a positive integer")
		}
		amount = n
	}
	return args[0], amount, nil
}

// parseMissionNew reads <id> <daily|weekly|special> <goal> <points> <action|-> <title...>.
func parseMissionNew(args []string) (*model.Mission, error) {
	if len(args) < 6 {
		return nil, errUsage
	}

	mt, err := model.ParseMissionType(strings.ToLower(args[1]))
	if err != nil {
		return nil, err
	}
	goal, err := strconv.Atoi(args[2])
	if err != nil {
		return nil, fmt.Errorf("goal must be an integer")
	}
	points, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("points must be an integer")
	}

	m := &model.Mission{
		ID:     args[0],
		Type:   mt,
		Goal:   goal,
		Points: points,
		Title:  strings.Join(args[5:], " "),
	}
	if args[4] != "-" {
		action, err := model.ParseActionKind(strings.ToLower(args[4]))
		if err != nil {
			return nil, err
		}
		m.Action = &action
	}
	return m, nil
}

// parseLimit reads an optional list size, clamped to [1, upper].
func parseLimit(args []string, def, upper int) int {
	if len(args) == 0 {
		return def
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return def
	}
	if n > upper {
		return upper
	}
	return n
}
