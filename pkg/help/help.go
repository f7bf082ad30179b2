// Package help holds the VisionScript quick reference, topic pages and
// per-operation help.
package help

import (
	"fmt"
	"sort"
	"strings"
)

// QUICKREF is printed by `vscript help` with no topic.
const QUICKREF = `VisionScript v0.3 quick reference

  Load["photo.jpg"]         load an image
  Detect["person"]          find objects in the current image
  Count[]                   count the detections
  Say[]                     print the last result
  Save["out.png"]           save the current image (annotated after Detect)

  n = Count[]               assign to a variable
  If[Count[] == 2]          run the indented lines when the guard is True
  In["images/"]             run the indented lines once per image in a folder
  Make name / Run[name]     define and call a function
  Input["key"]              read a value passed with --input key=value

Topics (vscript help <topic>):
  syntax        lines, brackets, literals, comments
  operations    every built-in operation
  flow          If, In, Make, Run and how a False guard stops a program
  models        backends, Use[] and search indexes
  config        .vscript.yaml keys
  diagnostics   error codes and exit statuses
  examples      complete programs
`

// TopicList is the display order of topics.
var TopicList = []string{"syntax", "operations", "flow", "models", "config", "diagnostics", "examples"}

// Topics maps topic names to their pages.
var Topics = map[string]string{
	"syntax": `SYNTAX

One statement per line. An operation is a capitalised name followed by its
arguments in square brackets: Load["a.png"]. Brackets may be omitted when
there are no arguments: Show is the same as Show[].

Literals: 42, -3, 0.5, "text" or 'text', True, False, [1, 2, 3].
Strings accept the escapes \" \' \\ \n \t.
Comments start with # and run to the end of the line.
Indentation (spaces, or tabs counted as 4) marks the body of If, In and Make.
Names are case sensitive: Detect is an operation, detect is a variable.
`,
	"operations": `OPERATIONS

Run "vscript help <Operation>" or Help["Operation"] inside a program for
details of one operation. Aliases: IsItA=Classify, Find=Detect,
Describe=Caption, GetColors=GetColours, Say=Read, Grayscale=Greyscale,
SetActiveModel=Use.
`,
	"flow": `CONTROL FLOW

If[guard]      runs its body when guard is True. When the guard is False or
               produces nothing the program stops there: no later line runs.
In["dir"]      runs its body once per image file in dir, in name order.
               Load[] with no path loads the current file.
Make name      stores the indented lines as a function.
Run[name]      runs a stored function. A bare name also runs it.
Not[x]         negates a boolean; a == b compares two values.
Exit[]         ends the session.
`,
	"models": `MODELS

Detection, segmentation, classification, captions, OCR, QR decoding and
embeddings are run by an inference backend configured in .vscript.yaml.
Without one those operations fail with "no inference backend configured".

Use["model"] selects the model passed to Detect and Segment.
Search["query"] embeds every loaded image into a SQLite search index
(in memory unless index_dsn is set) and returns the best match's path.
`,
	"config": `CONFIGURATION

vscript reads .vscript.yaml in the current directory, then
~/.vscript/config.yaml. Keys:

  backend:
    kind: none | http
    endpoint: http://localhost:8000
    timeout: 30s
    retries: 2
  model: yolov8n
  show_dir: shown
  index_dsn: index.db
  inputs:
    threshold: 2
`,
	"diagnostics": `DIAGNOSTICS

  E_SYNTAX        malformed line                      exit 2
  E_LEX           character that cannot start a token exit 2
  E_UNKNOWN_FN    operation name does not exist       exit 2 (4 at runtime)
  E_UNDEFINED_FN  Run of a function never made        exit 4
  E_MISSING       missing image, detections or input  exit 4
  E_OP            an operation failed                 exit 4
  E_IO            file could not be read              exit 1
  E_CONFIG        invalid configuration               exit 1

Reported by "vscript check" only:

  E_ARITY         operation given too few arguments
  E_FN_DUP        function made more than once
  E_LOOP_DIR      In[] given something other than a folder name
`,
	"examples": `EXAMPLES

Count people:
  Load["street.jpg"]
  Detect["person"]
  Say[Count[]]

Label a folder:
  In["photos/"]
    Load[]
    Detect["cat"]
    Save[]

Reusable step:
  Make tidy
    Greyscale[]
    Resize[640, 480]
  Load["a.png"]
  Run[tidy]
`,
}

// MatchTopic finds a topic by exact name or unique prefix.
func MatchTopic(query string) (string, string, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if content, ok := Topics[q]; ok {
		return q, content, nil
	}
	var matches []string
	for _, name := range TopicList {
		if q != "" && strings.HasPrefix(name, q) {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], Topics[matches[0]], nil
	case 0:
		return "", "", fmt.Errorf("unknown help topic '%s'", query)
	}
	return "", "", fmt.Errorf("ambiguous help topic '%s' (matches %s)", query, strings.Join(matches, ", "))
}

type opDoc struct {
	usage   string
	summary string
}

var operations = map[string]opDoc{
	"load":          {`Load["path"]`, "Load an image and make it current. Inside In[] the path may be omitted."},
	"save":          {`Save["path"]`, "Save the current image, with boxes drawn if the last operation detected objects. Defaults to output.png."},
	"classify":      {`Classify["cat", "dog"]`, "Return the label that best describes the current image."},
	"detect":        {`Detect["class", ...]`, "Detect objects in the current image with the active model."},
	"segment":       {`Segment["class", ...]`, "Segment objects in the current image with the active model."},
	"cutout":        {`Cutout[index]`, "Crop detection index (default 0) into a new image."},
	"count":         {`Count["class"]`, "Count the current detections, optionally of one class."},
	"countinregion": {`CountInRegion[x0, y0, x1, y1]`, "Count detections whose centre lies inside the region."},
	"replace":       {`Replace["colour"]`, "Fill every detection box with a named colour. An unknown colour is reported and skipped."},
	"show":          {`Show[]`, "Display the current image."},
	"train":         {`Train["folder", "model"]`, "Train a model on a labelled folder."},
	"read":          {`Read[]`, "Print the last result, or the given arguments."},
	"label":         {`Label["folder", "class", ...]`, "Detect objects in every image of a folder and write YOLO label files."},
	"caption":       {`Caption[]`, "Describe the current image in words."},
	"contains":      {`Contains["word"]`, "Check whether the last text contains a word, or the detections contain a class."},
	"import":        {`Import["file.vic"]`, "Run another VisionScript file in this session."},
	"rotate":        {`Rotate[degrees]`, "Rotate the current image counter-clockwise."},
	"getcolours":    {`GetColours[k]`, "Name the k most common colours in the current image."},
	"gettext":       {`GetText[]`, "Read the text in the current image."},
	"greyscale":     {`Greyscale[]`, "Convert the current image to greyscale."},
	"select":        {`Select[index]`, "Keep one detection, or the detections of a class."},
	"paste":         {`Paste[x, y]`, "Paste the current image onto the previous one."},
	"pasterandom":   {`PasteRandom[]`, "Paste the current image onto the previous one at a random position."},
	"resize":        {`Resize[width, height]`, "Resize the current image. A zero keeps the aspect ratio."},
	"blur":          {`Blur[sigma]`, "Blur the current image (default sigma 2)."},
	"setbrightness": {`SetBrightness[percent]`, "Brighten or darken the current image, from -100 to 100."},
	"search":        {`Search["query"]`, "Return the path of the loaded image that best matches the query."},
	"similarity":    {`Similarity[]`, "Compare the two most recent images, from -1 to 1."},
	"readqr":        {`ReadQR[]`, "Decode a QR code in the current image."},
	"reset":         {`Reset[]`, "Forget all images, detections, functions and variables."},
	"use":           {`Use["model"]`, "Select the model used by Detect and Segment."},
	"help":          {`Help["Operation"]`, "Print help for an operation, or list them all."},
	"exit":          {`Exit[]`, "End the session."},
}

// Operation returns the help page for a canonical operation name.
func Operation(name string) (string, bool) {
	d, ok := operations[name]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s\n  %s\n", d.usage, d.summary), true
}

// OperationIndex lists every operation with its usage.
func OperationIndex() string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("Operations:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-32s %s\n", operations[name].usage, operations[name].summary)
	}
	fmt.Fprintf(&b, "\nTotal: %d operations\n", len(names))
	return b.String()
}

// Names returns the canonical names that have help pages.
func Names() []string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
