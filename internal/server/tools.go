package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func numberProp(description string, def float64) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description, "default": def}
}

// boxProperties returns the x1..y2 properties of a box or segment, plus extra.
func boxProperties(what string, extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"x1": intProp("Left X of the " + what),
		"y1": intProp("Top Y of the " + what),
		"x2": intProp("Right X of the " + what),
		"y2": intProp("Bottom Y of the " + what),
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_load",
			Description: "Load a frame snapshot and return its dimensions, format and file size. The frame stays cached for later calls.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": stringProp("Absolute path to a PNG or JPEG frame"),
			}, "path"),
		},

		// Door geometry
		{
			Name:        "door_fit_gate",
			Description: "Fit the floor threshold gate inside a door box the way automatic door detection does. Returns the gate endpoints and whether an edge or the flat fallback was used.",
			InputSchema: objectSchema(boxProperties("door box", map[string]interface{}{
				"path":             stringProp("Absolute path to the frame"),
				"line_offset":      numberProp("Pixels to move the gate up from the threshold", 6),
				"max_angle":        numberProp("Steepest accepted threshold in degrees", 35),
				"min_bottom_ratio": numberProp("How far down the box the threshold must lie (0-1)", 0.55),
			}), "path", "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "door_split_box",
			Description: "Split a wide door box at the strongest vertical divider, as done for double doors. Returns one box when no split applies.",
			InputSchema: objectSchema(boxProperties("door box", map[string]interface{}{
				"path":         stringProp("Absolute path to the frame"),
				"min_width":    numberProp("Minimum width of each half in pixels", 80),
				"ratio":        numberProp("Width to height ratio from which a box counts as wide", 1.35),
				"std_multiple": numberProp("Divider strength in standard deviations above the mean", 0.6),
			}), "path", "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "door_edges",
			Description: "Run Canny edge detection on a door box and return the edge image as base64 PNG.",
			InputSchema: objectSchema(boxProperties("door box", map[string]interface{}{
				"path":           stringProp("Absolute path to the frame"),
				"threshold_low":  numberProp("Lower hysteresis threshold", 50),
				"threshold_high": numberProp("Upper hysteresis threshold", 150),
				"preprocess":     stringProp("Frame preprocessing before edge detection: none or clahe"),
				"gamma":          numberProp("Gamma correction applied before edge detection", 1),
			}), "path", "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "door_overlay",
			Description: "Draw door boxes with their fitted gates and labels on a frame. Returns the annotated frame as base64 PNG together with the fitted gates.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": stringProp("Absolute path to the frame"),
				"boxes": map[string]interface{}{
					"type":        "array",
					"description": "Door boxes to draw",
					"items": objectSchema(boxProperties("door box", map[string]interface{}{
						"label": stringProp("Optional text drawn above the box"),
						"color": stringProp("Hex color like #00C800, default green"),
					}), "x1", "y1", "x2", "y2"),
				},
				"line_offset": numberProp("Pixels to move each gate up from the threshold", 6),
				"max_side":    intProp("Downscale the result so its longest side is at most this many pixels (0 keeps the size)"),
			}, "path", "boxes"),
		},

		// Boundaries
		{
			Name:        "boundary_side",
			Description: "Classify points against a gate segment as above, below or unknown (dead zone or outside the span).",
			InputSchema: objectSchema(boxProperties("gate segment", map[string]interface{}{
				"margin": numberProp("Dead zone around the gate in pixels", 6),
				"points": map[string]interface{}{
					"type":        "array",
					"description": "Points to classify",
					"items": objectSchema(map[string]interface{}{
						"x": numberProp("X coordinate", 0),
						"y": numberProp("Y coordinate", 0),
					}, "x", "y"),
				},
			}), "x1", "y1", "x2", "y2", "points"),
		},
		{
			Name:        "rooms_validate",
			Description: "Validate a rooms configuration file and return the boundaries it resolves to for a given frame width.",
			InputSchema: objectSchema(map[string]interface{}{
				"path":              stringProp("Absolute path to the rooms JSON file"),
				"width":             intProp("Frame width used to resolve missing spans"),
				"direction":         stringProp("Default entry direction: down or up"),
				"margin":            numberProp("Default dead zone in pixels", 6),
				"thickness":         numberProp("Default line thickness", 2),
				"initial_occupancy": numberProp("Default starting occupancy", 0),
			}, "path", "width"),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
