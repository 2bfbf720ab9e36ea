// Package config assembles the settings of a counting run.
//
// Settings come from four layers, each overriding the one before:
//
//  1. Built-in defaults (Default)
//  2. An optional YAML file named by --config
//  3. Environment variables (NEXT_API_BASE_URL, CV_API_KEY, ROOM_ID,
//     CAMERA_ID, TRACKER_URL, DOOR_DETECTOR_URL, OCCUPANCY_LOG_LEVEL)
//  4. Command-line flags
//
// The converters on Settings produce the configuration structs of the
// doors, rooms, counting and dispatch packages.
package config
