package ingestion

const policyExtractionSystem = `You are a policy extraction model. Identify individual safety or compliance rules and the terminology they depend on in a natural language policy document, so they can be used in downstream logical reasoning.

For each rule extract an exact natural-language description (quote the source wording, do not paraphrase) and a list of term definitions clarifying any ambiguous words, inferring brief definitions from context when the document does not state them explicitly.

Output only a JSON list of the form:
[{"rule_description": "...", "term_definitions": ["..."]}]`

const policyExtractionUser = `---Start of Document---

%s

---End of Document---`

const logicExtractionSystem = `You are a policy-to-logic translation model. Convert the extracted rules into Propositional Logic over atomic, verifiable predicates.

Use snake_case predicate names, prefer positive predicates over negated ones, decompose compound rules into smaller atomic rules, and use parentheses liberally to avoid ambiguity. Each predicate needs a name, a description, a list of context keywords, and a default boolean value.

Output only a JSON list of the form:
[{"predicates": [["name", "description", ["kw1","kw2"], true]], "logic": "predicate_a IMPLIES predicate_b", "description": "natural language summary"}]`

const logicExtractionUser = `---Start of Content---

%s

---End of Content---`

const verifySystem = `You are a predicate verification model. For each predicate in the rules below, check that it is verifiable, concrete, accurate, atomic, necessary, and unambiguous; rewrite, split, rename, or remove it as needed, and redetermine its default value.

Output the full updated rule list in the same JSON format as the input:
[{"predicates": [["name", "description", ["kw1","kw2"], true]], "logic": "...", "description": "..."}]`

const verifyUser = `---Start of Content---

%s

---End of Content---`

const refineSystem = `You are a predicate merging model. Across the rules below, identify predicates that can be merged: redundant predicates describing the same condition under different names, and rules with identical semantics phrased differently. Merge them so the combined predicates and rules are consistent and completely preserve the meaning of the originals, and redetermine each default value.

Output the full merged rule list in the same JSON format as the input:
[{"predicates": [["name", "description", ["kw1","kw2"], true]], "logic": "...", "description": "..."}]`

const refineUser = `---Start of Content---

%s

---End of Content---`
