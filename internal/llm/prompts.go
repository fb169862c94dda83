package llm

// The prompts are German because the monitored feeds are German. The
// extraction prompt enumerates the conjunctive qualification criteria;
// the model must answer with the literal "null" unless every criterion
// is clearly met.

const extractionSystemPrompt = `Du bist ein sehr kritischer Fact-Checker. Gib nur Vorfälle zurück, die zu 100% verifiziert und relevant sind.`

const extractionPromptTemplate = `Analysiere diesen Artikel streng nach folgenden Kriterien für rassistisch motivierte Vorfälle in %[1]s.

Ein Vorfall muss ALLE diese Kriterien erfüllen:
1. Der Vorfall fand definitiv in %[1]s statt
2. Es handelt sich eindeutig um einen rassistisch oder fremdenfeindlich motivierten Übergriff
3. Der Vorfall geschah nach dem %[2]s
4. Der Vorfall ist durch offizielle Quellen (Polizei, Behörden) oder mehrere unabhängige Zeugen bestätigt
5. Es gibt eine klare rassistische oder fremdenfeindliche Motivation (z.B. durch Äußerungen oder Kontext)

Antworte mit "null" wenn:
- Auch nur EINES der obigen Kriterien nicht eindeutig erfüllt ist
- Der Artikel nur allgemein über Rassismus berichtet
- Der Artikel sich auf frühere Vorfälle bezieht
- Es Zweifel an der rassistischen Motivation gibt
- Der Vorfall nicht in %[1]s stattfand
- Der Vorfall nicht ausreichend verifiziert ist

Falls ALLE Kriterien erfüllt sind, antworte NUR mit einem JSON-Objekt mit:
- date (YYYY-MM-DD)
- location (präziser Ort in %[1]s)
- description (kurze faktische Beschreibung mit Nennung der Quelle der Verifizierung)
- sources (Array mit url und name)
- type (physical_attack, verbal_attack, property_damage, oder other)
- status (verified wenn von Polizei/Behörden bestätigt, sonst unverified)

Artikel:
%[3]s`

const comparisonPromptTemplate = `Compare a new incident report against a list of known incidents from the same date and decide, for each known incident, whether both describe the same real-world event reported differently. Consider location, type of attack, and description details.

Answer ONLY with a JSON array of booleans, one per known incident, in the given order. Example: [false, true]

New incident:
Location: %s
Description: %s
Type: %s

Known incidents:
%s`
