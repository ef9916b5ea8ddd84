package compiler

// opShape declares how a built-in opcode is descended.
type opShape struct {
	stacked  bool
	inputs   []string
	branches []string
}

var hatOpcodes = map[string]bool{
	"event_whenflagclicked":       true,
	"event_whenkeypressed":        true,
	"event_whenbroadcastreceived": true,
	"event_whenthisspriteclicked": true,
}

// IsHat reports whether opcode starts a script.
func IsHat(opcode string) bool { return hatOpcodes[opcode] }

// literalOpcodes are shadow reporters that hold a single literal field.
var literalOpcodes = map[string]string{
	"math_number":          "NUM",
	"math_positive_number": "NUM",
	"math_whole_number":    "NUM",
	"math_integer":         "NUM",
	"math_angle":           "NUM",
	"text":                 "TEXT",
	"colour_picker":        "COLOUR",
}

func stmt(inputs []string, branches ...string) opShape {
	return opShape{stacked: true, inputs: inputs, branches: branches}
}

func reporter(inputs ...string) opShape {
	return opShape{inputs: inputs}
}

func ins(names ...string) []string { return names }

var builtinOps = map[string]opShape{
	// control
	"control_if":           stmt(ins("CONDITION"), "SUBSTACK"),
	"control_if_else":      stmt(ins("CONDITION"), "SUBSTACK", "SUBSTACK2"),
	"control_repeat":       stmt(ins("TIMES"), "SUBSTACK"),
	"control_repeat_until": stmt(ins("CONDITION"), "SUBSTACK"),
	"control_while":        stmt(ins("CONDITION"), "SUBSTACK"),
	"control_forever":      stmt(nil, "SUBSTACK"),
	"control_for_each":     stmt(ins("VALUE"), "SUBSTACK"),
	"control_stop":         stmt(nil),
	"control_wait":         stmt(ins("DURATION")),

	// data
	"data_variable":          reporter(),
	"data_setvariableto":     stmt(ins("VALUE")),
	"data_changevariableby":  stmt(ins("VALUE")),
	"data_listcontents":      reporter(),
	"data_addtolist":         stmt(ins("ITEM")),
	"data_deleteoflist":      stmt(ins("INDEX")),
	"data_deletealloflist":   stmt(nil),
	"data_insertatlist":      stmt(ins("ITEM", "INDEX")),
	"data_replaceitemoflist": stmt(ins("INDEX", "ITEM")),
	"data_itemoflist":        reporter("INDEX"),
	"data_lengthoflist":      reporter(),
	"data_listcontainsitem":  reporter("ITEM"),

	// operators
	"operator_add":       reporter("NUM1", "NUM2"),
	"operator_subtract":  reporter("NUM1", "NUM2"),
	"operator_multiply":  reporter("NUM1", "NUM2"),
	"operator_divide":    reporter("NUM1", "NUM2"),
	"operator_mod":       reporter("NUM1", "NUM2"),
	"operator_round":     reporter("NUM"),
	"operator_mathop":    reporter("NUM"),
	"operator_random":    reporter("FROM", "TO"),
	"operator_lt":        reporter("OPERAND1", "OPERAND2"),
	"operator_gt":        reporter("OPERAND1", "OPERAND2"),
	"operator_equals":    reporter("OPERAND1", "OPERAND2"),
	"operator_and":       reporter("OPERAND1", "OPERAND2"),
	"operator_or":        reporter("OPERAND1", "OPERAND2"),
	"operator_not":       reporter("OPERAND"),
	"operator_join":      reporter("STRING1", "STRING2"),
	"operator_letter_of": reporter("LETTER", "STRING"),
	"operator_length":    reporter("STRING"),
	"operator_contains":  reporter("STRING1", "STRING2"),

	// host
	"looks_say":        stmt(ins("MESSAGE")),
	"looks_think":      stmt(ins("MESSAGE")),
	"motion_movesteps": stmt(ins("STEPS")),
	"motion_gotoxy":    stmt(ins("X", "Y")),
	"motion_turnright": stmt(ins("DEGREES")),
	"motion_turnleft":  stmt(ins("DEGREES")),
	"motion_changexby": stmt(ins("DX")),
	"motion_changeyby": stmt(ins("DY")),
	"motion_xposition": reporter(),
	"motion_yposition": reporter(),
	"motion_direction": reporter(),
	"event_broadcast":  stmt(ins("BROADCAST_INPUT")),
	"sensing_timer":    reporter(),
}

// IsBuiltin reports whether opcode is handled without an extension.
func IsBuiltin(opcode string) bool {
	if _, ok := builtinOps[opcode]; ok {
		return true
	}
	_, ok := literalOpcodes[opcode]
	return ok || hatOpcodes[opcode]
}
