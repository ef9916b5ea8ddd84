package compiler

// helper is a runtime function emitted at most once per unit.
type helper struct {
	deps   []string
	source string
}

// helpers mirror the cast package. Keep the two in step: the generated
// code and the interpreter must agree on every coercion.
var helpers = map[string]helper{
	"isWhiteSpace": {source: `function isWhiteSpace(v) {
  return v === null || v === undefined || (typeof v === "string" && v.trim().length === 0);
}`},

	"castNumber": {source: `function castNumber(v) {
  if (typeof v === "number") return isNaN(v) ? 0 : v;
  if (typeof v === "boolean") return v ? 1 : 0;
  if (typeof v === "string") {
    const n = parseFloat(v);
    return isNaN(n) ? 0 : n;
  }
  return 0;
}`},

	"castString": {source: `function castString(v) {
  if (v === null || v === undefined) return "";
  return String(v);
}`},

	"castBoolean": {source: `function castBoolean(v) {
  if (typeof v === "boolean") return v;
  if (typeof v === "string") return !(v === "" || v === "0" || v.toLowerCase() === "false");
  return Boolean(v);
}`},

	"castCompare": {deps: []string{"isWhiteSpace", "castString"}, source: `function castCompare(v1, v2) {
  let n1 = Number(v1);
  let n2 = Number(v2);
  if (n1 === 0 && isWhiteSpace(v1)) {
    n1 = NaN;
  } else if (n2 === 0 && isWhiteSpace(v2)) {
    n2 = NaN;
  }
  if (isNaN(n1) || isNaN(n2)) {
    const s1 = castString(v1).toLowerCase();
    const s2 = castString(v2).toLowerCase();
    if (s1 < s2) return -1;
    if (s1 > s2) return 1;
    return 0;
  }
  if ((n1 === Infinity && n2 === Infinity) || (n1 === -Infinity && n2 === -Infinity)) return 0;
  const d = n1 - n2;
  if (d < 0) return -1;
  if (d > 0) return 1;
  return 0;
}`},

	"castMod": {source: `function castMod(n, m) {
  let r = n % m;
  if (r / m < 0) r += m;
  return r;
}`},

	"toFixed10": {source: `function toFixed10(x) {
  if (isNaN(x) || !isFinite(x)) return x;
  return parseFloat(x.toFixed(10));
}`},

	"mathSin": {deps: []string{"toFixed10"}, source: `function mathSin(n) {
  return toFixed10(Math.sin(Math.PI * n / 180));
}`},

	"mathCos": {deps: []string{"toFixed10"}, source: `function mathCos(n) {
  return toFixed10(Math.cos(Math.PI * n / 180));
}`},

	"mathTan": {deps: []string{"toFixed10"}, source: `function mathTan(angle) {
  angle = angle % 360;
  switch (angle) {
    case -270:
    case 90:
      return Infinity;
    case -90:
    case 270:
      return -Infinity;
  }
  return toFixed10(Math.tan(Math.PI * angle / 180));
}`},

	"letterOf": {source: `function letterOf(s, index) {
  const i = index - 1;
  if (i < 0 || i >= s.length) return "";
  return s.charAt(i);
}`},

	"castContains": {source: `function castContains(s, sub) {
  return s.toLowerCase().indexOf(sub.toLowerCase()) !== -1;
}`},

	"isInt": {source: `function isInt(v) {
  if (typeof v === "number") {
    if (isNaN(v)) return true;
    if (!isFinite(v) || Math.abs(v) >= 1e21) return false;
    return v === Math.trunc(v);
  }
  if (typeof v === "boolean") return true;
  if (typeof v === "string") return v.indexOf(".") < 0;
  return false;
}`},

	"randomBetween": {deps: []string{"castNumber", "isInt"}, source: `function randomBetween(from, to) {
  const nFrom = castNumber(from);
  const nTo = castNumber(to);
  let low = nFrom;
  let high = nTo;
  if (nFrom > nTo) {
    low = nTo;
    high = nFrom;
  }
  if (low === high) return low;
  const r = runtime.random();
  if (isInt(from) && isInt(to)) return low + Math.floor(r * ((high + 1) - low));
  return (r * (high - low)) + low;
}`},

	"listIndex": {deps: []string{"castNumber"}, source: `function listIndex(index, length, acceptAll) {
  if (typeof index === "string") {
    if (index === "all") return acceptAll ? -1 : 0;
    if (index === "last") return length > 0 ? length : 0;
    if (index === "random" || index === "any") {
      return length > 0 ? 1 + Math.floor(runtime.random() * length) : 0;
    }
  }
  const n = Math.floor(castNumber(index));
  if (n < 1 || n > length) return 0;
  return n;
}`},

	"listGet": {deps: []string{"listIndex"}, source: `function listGet(list, index) {
  const i = listIndex(index, list.length, false);
  if (i === 0) return "";
  return list[i - 1];
}`},

	"listAdd": {source: `function listAdd(list, item) {
  if (list.length < 200000) list.push(item);
}`},

	"listDelete": {deps: []string{"listIndex"}, source: `function listDelete(list, index) {
  const i = listIndex(index, list.length, true);
  if (i === 0) return;
  if (i === -1) {
    list.length = 0;
    return;
  }
  list.splice(i - 1, 1);
}`},

	"listInsert": {deps: []string{"listIndex"}, source: `function listInsert(list, index, item) {
  const i = listIndex(index, list.length + 1, false);
  if (i === 0 || i > 200000) return;
  list.splice(i - 1, 0, item);
  if (list.length > 200000) list.pop();
}`},

	"listReplace": {deps: []string{"listIndex"}, source: `function listReplace(list, index, item) {
  const i = listIndex(index, list.length, false);
  if (i === 0) return;
  list[i - 1] = item;
}`},

	"listContents": {deps: []string{"castString"}, source: `function listContents(list) {
  for (let i = 0; i < list.length; i++) {
    const x = list[i];
    if (typeof x !== "string" || x.length !== 1) {
      return list.map(function (v) { return castString(v); }).join(" ");
    }
  }
  return list.join("");
}`},

	"listContains": {deps: []string{"castCompare"}, source: `function listContains(list, item) {
  for (let i = 0; i < list.length; i++) {
    if (castCompare(list[i], item) === 0) return true;
  }
  return false;
}`},

	"lookupVariable": {source: `function lookupVariable(id, name) {
  const scopes = [target.variables, runtime.stage ? runtime.stage.variables : null];
  for (let i = 0; i < scopes.length; i++) {
    const vars = scopes[i];
    if (vars && Object.prototype.hasOwnProperty.call(vars, id)) return vars[id];
  }
  for (let i = 0; i < scopes.length; i++) {
    const vars = scopes[i];
    if (!vars) continue;
    for (const k in vars) {
      if (vars[k].name === name) return vars[k];
    }
  }
  const created = { name: name, value: 0 };
  target.variables[id] = created;
  return created;
}`},

	"lookupList": {source: `function lookupList(id, name) {
  const scopes = [target.lists, runtime.stage ? runtime.stage.lists : null];
  for (let i = 0; i < scopes.length; i++) {
    const lists = scopes[i];
    if (lists && Object.prototype.hasOwnProperty.call(lists, id)) return lists[id];
  }
  for (let i = 0; i < scopes.length; i++) {
    const lists = scopes[i];
    if (!lists) continue;
    for (const k in lists) {
      if (lists[k].name === name) return lists[k];
    }
  }
  const created = { name: name, value: [] };
  target.lists[id] = created;
  return created;
}`},
}
