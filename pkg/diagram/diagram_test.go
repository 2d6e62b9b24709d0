package diagram

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ormasoftchile/geoproc/pkg/kernel/cmdfile"
	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
	"github.com/ormasoftchile/geoproc/pkg/kernel/processor"
)

const flow = `# demo
SetProperty(PropertyName="n",PropertyValue="3")
For(Name="loop",SequenceStart="1",SequenceEnd="${n}")
  If(Name="big",Condition="${loop} > 1")
    Message(Text="big")
  EndIf(Name="big")
EndFor(Name="loop")
Message(Text="done")
`

func parse(text string) []command.Command {
	return cmdfile.ParseText(text, command.DefaultRegistry())
}

func TestGenerateMermaid(t *testing.T) {
	out, err := Generate(parse(flow), "flow.gp", FormatMermaid)
	if err != nil {
		t.Fatal(err)
	}
	want := `flowchart TD
    START([Start]) --> L2
    L2["2: SetProperty"]
    L3{{"3: For loop"}}
    L4{"4: If big"}
    L5["5: Message"]
    L8["8: Message"]
    L2 --> L3
    L3 -->|"each"| L4
    L3 -->|"done"| L8
    L4 -->|"true"| L5
    L4 -->|"false"| L3
    L5 --> L3
    L8 --> END
    END([End])
`
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("mermaid mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateASCII(t *testing.T) {
	out, err := Generate(parse(flow), "flow.gp", FormatASCII)
	if err != nil {
		t.Fatal(err)
	}
	want := `flow.gp
├─ 2  SetProperty
├─ 3  For loop
│  └─ 4  If big
│     └─ 5  Message
└─ 8  Message
`
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("ascii mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_EmptyFile(t *testing.T) {
	out, err := Generate(parse("# only a comment\n\n"), "", FormatASCII)
	if err != nil {
		t.Fatal(err)
	}
	if out != "Command file (empty)\n" {
		t.Errorf("got %q", out)
	}
	out, err = Generate(nil, "", FormatMermaid)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "START([Start]) --> END") {
		t.Errorf("empty flowchart should link start to end:\n%s", out)
	}
}

func TestGenerate_UnmatchedBlocks(t *testing.T) {
	text := `EndIf(Name="stray")
Message(Text="a")
For(Name="outer",List="x")
  If(Name="open",Condition="1 > 0")
    Message(Text="b")
EndFor(Name="outer")
Message(Text="c")
For(Name="tail",List="y")
Message(Text="d")
`
	out, err := Generate(parse(text), "t.gp", FormatASCII)
	if err != nil {
		t.Fatal(err)
	}
	want := `t.gp
├─ 2  Message
├─ 3  For outer
│  └─ 4  If open
│     └─ 5  Message
├─ 7  Message
└─ 8  For tail
   └─ 9  Message
`
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("ascii mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_MarksFailures(t *testing.T) {
	reg := command.DefaultRegistry()
	p := processor.New(processor.WithRegistry(reg))
	if err := p.Load(cmdfile.ParseText("Message(Text=\"ok\")\nNope()\n", reg)); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Validate(context.Background()); err != nil {
		t.Fatal(err)
	}

	ascii, err := Generate(p.Commands(), "bad.gp", FormatASCII)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ascii, "└─ 2  Nope  ✗") {
		t.Errorf("failed command not marked:\n%s", ascii)
	}
	mermaid, err := Generate(p.Commands(), "bad.gp", FormatMermaid)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(mermaid, "style L2 fill:#f8d0d0,stroke:#c00") {
		t.Errorf("failed command not styled:\n%s", mermaid)
	}
	if strings.Contains(mermaid, "style L1") {
		t.Errorf("successful command styled:\n%s", mermaid)
	}
}

func TestGenerate_UnsupportedFormat(t *testing.T) {
	if _, err := Generate(nil, "", Format("svg")); err == nil {
		t.Error("expected error for unsupported format")
	}
}
