package ocf

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const (
	// AgentName is the resource type name registered with the cluster manager.
	AgentName = "flashcache"
	// AgentVersion is the version advertised in the metadata document.
	AgentVersion = "1.0"
)

// Usage is printed by the usage action and for unknown actions.
const Usage = "usage: flashcache-agent {start|stop|status|monitor|reload|meta-data|validate-all|usage|help}"

type resourceAgent struct {
	XMLName    xml.Name    `xml:"resource-agent"`
	Name       string      `xml:"name,attr"`
	Version    string      `xml:"version"`
	LongDesc   desc        `xml:"longdesc"`
	ShortDesc  desc        `xml:"shortdesc"`
	Parameters []parameter `xml:"parameters>parameter"`
	Actions    []action    `xml:"actions>action"`
}

type desc struct {
	Lang string `xml:"lang,attr"`
	Text string `xml:",chardata"`
}

type parameter struct {
	Name      string  `xml:"name,attr"`
	Unique    int     `xml:"unique,attr"`
	Required  int     `xml:"required,attr"`
	LongDesc  desc    `xml:"longdesc"`
	ShortDesc desc    `xml:"shortdesc"`
	Content   content `xml:"content"`
}

type content struct {
	Type    string `xml:"type,attr"`
	Default string `xml:"default,attr,omitempty"`
}

type action struct {
	Name     string `xml:"name,attr"`
	Timeout  string `xml:"timeout,attr"`
	Interval string `xml:"interval,attr,omitempty"`
	Depth    string `xml:"depth,attr,omitempty"`
}

func en(text string) desc { return desc{Lang: "en", Text: text} }

func metadataDocument(defaultName string) resourceAgent {
	return resourceAgent{
		Name:    AgentName,
		Version: AgentVersion,
		LongDesc: en("Manages a flashcache device-mapper target that layers a fast cache device " +
			"in front of a slower backing device. Stopping the resource removes the mapping, " +
			"which flushes dirty cache blocks to the backing device."),
		ShortDesc: en("Manages a flashcache cached block device"),
		Parameters: []parameter{
			{
				Name:      "name",
				Unique:    1,
				LongDesc:  en("Name of the device-mapper target, exposed as /dev/mapper/<name>."),
				ShortDesc: en("Cache device name"),
				Content:   content{Type: "string", Default: defaultName},
			},
			{
				Name:      "device",
				Unique:    1,
				Required:  1,
				LongDesc:  en("Backing block device whose data is being cached."),
				ShortDesc: en("Backing device"),
				Content:   content{Type: "string"},
			},
			{
				Name:      "cache_device",
				Unique:    1,
				Required:  1,
				LongDesc:  en("Fast block device holding the flashcache metadata and cached blocks."),
				ShortDesc: en("Cache device"),
				Content:   content{Type: "string"},
			},
		},
		Actions: []action{
			{Name: "start", Timeout: "120s"},
			{Name: "stop", Timeout: "120s"},
			{Name: "monitor", Timeout: "20s", Interval: "10s", Depth: "0"},
			{Name: "status", Timeout: "20s"},
			{Name: "reload", Timeout: "120s"},
			{Name: "meta-data", Timeout: "5s"},
			{Name: "validate-all", Timeout: "20s"},
		},
	}
}

// WriteMetadata renders the resource-agent metadata document. It never depends
// on configuration validity.
func WriteMetadata(w io.Writer, defaultName string) error {
	body, err := xml.MarshalIndent(metadataDocument(defaultName), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render metadata: %w", err)
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>` + "\n")
	b.WriteString(`<!DOCTYPE resource-agent SYSTEM "ra-api-1.dtd">` + "\n")
	b.Write(body)
	b.WriteString("\n")

	_, err = io.WriteString(w, b.String())
	return err
}
