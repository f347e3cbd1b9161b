// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package template implements the path/rename engine (spec §4.7): six named
// handlebars-style templates rendered against a fixed variable set, the
// three-stage path-safety transform (separator sentinel, variable-slash
// sentinel, filename-safe normalisation), and the four-step atomic rename
// pass triggered when a template changes.
package template

// Vars is the fixed variable set available to every template, per the
// spec's GLOSSARY "Template variable set" entry. Unpopulated fields render
// as empty strings.
type Vars struct {
	Title       string
	ShowTitle   string
	Bvid        string
	UpperName   string
	UpperMid    string
	Pubtime     string
	FavTime     string
	Ctime       string
	Pid         string
	PidPad      string
	Season      string
	SeasonPad   string
	Episode     string
	EpisodePad  string
	Duration    string
	Width       string
	Height      string
	SeriesTitle string
	SeasonTitle string
	Year        string
	Studio      string
	Actors      string
}

// ToMap flattens Vars into the lowercase-snake-case keys the template
// syntax references ({{title}}, {{upper_name}}, ...).
func (v Vars) ToMap() map[string]string {
	return map[string]string{
		"title":        v.Title,
		"show_title":   v.ShowTitle,
		"bvid":         v.Bvid,
		"upper_name":   v.UpperName,
		"upper_mid":    v.UpperMid,
		"pubtime":      v.Pubtime,
		"fav_time":     v.FavTime,
		"ctime":        v.Ctime,
		"pid":          v.Pid,
		"pid_pad":      v.PidPad,
		"season":       v.Season,
		"season_pad":   v.SeasonPad,
		"episode":      v.Episode,
		"episode_pad":  v.EpisodePad,
		"duration":     v.Duration,
		"width":        v.Width,
		"height":       v.Height,
		"series_title": v.SeriesTitle,
		"season_title": v.SeasonTitle,
		"year":         v.Year,
		"studio":       v.Studio,
		"actors":       v.Actors,
	}
}

// Name identifies one of the six named templates.
type Name string

const (
	NameVideo          Name = "video_name"
	NamePage           Name = "page_name"
	NameMultiPage      Name = "multi_page_name"
	NameBangumi        Name = "bangumi_name"
	NameFolderStruct   Name = "folder_structure"
	NameBangumiFolder  Name = "bangumi_folder_name"
)
