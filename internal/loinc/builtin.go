package loinc

import "bloodagent/internal/port"

// BuiltinEntries returns a reference table covering the common blood panels
// (CBC, metabolic, lipid, liver, thyroid, iron, inflammation).
func BuiltinEntries() []port.LOINCEntry {
	return []port.LOINCEntry{
		{Code: "718-7", Component: "Hemoglobin", LongName: "Hemoglobin [Mass/volume] in Blood", ShortName: "Hgb Bld-mCnc", Class: "HEM/BC", Units: "g/dL", Synonyms: "Hgb;HGB;Hb;Haemoglobin;Хемоглобин"},
		{Code: "4544-3", Component: "Hematocrit", LongName: "Hematocrit [Volume Fraction] of Blood by Automated count", ShortName: "Hct VFr Bld Auto", Class: "HEM/BC", Units: "%", Synonyms: "Hct;HCT;PCV;Haematocrit;Хематокрит"},
		{Code: "6690-2", Component: "Leukocytes", LongName: "Leukocytes [#/volume] in Blood by Automated count", ShortName: "WBC # Bld Auto", Class: "HEM/BC", Units: "10*3/uL", Synonyms: "WBC;White blood cells;White blood cell count;Leukocyte count;Леукоцити"},
		{Code: "789-8", Component: "Erythrocytes", LongName: "Erythrocytes [#/volume] in Blood by Automated count", ShortName: "RBC # Bld Auto", Class: "HEM/BC", Units: "10*6/uL", Synonyms: "RBC;Red blood cells;Red blood cell count;Erythrocyte count;Еритроцити"},
		{Code: "777-3", Component: "Platelets", LongName: "Platelets [#/volume] in Blood by Automated count", ShortName: "Platelet # Bld Auto", Class: "HEM/BC", Units: "10*3/uL", Synonyms: "PLT;Platelet;Thrombocytes;Тромбоцити"},
		{Code: "787-2", Component: "MCV", LongName: "MCV [Entitic volume] by Automated count", ShortName: "MCV RBC Auto", Class: "HEM/BC", Units: "fL", Synonyms: "Mean corpuscular volume;Mean cell volume"},
		{Code: "785-6", Component: "MCH", LongName: "MCH [Entitic mass] by Automated count", ShortName: "MCH RBC Qn Auto", Class: "HEM/BC", Units: "pg", Synonyms: "Mean corpuscular hemoglobin;Mean cell hemoglobin"},
		{Code: "786-4", Component: "MCHC", LongName: "MCHC [Mass/volume] by Automated count", ShortName: "MCHC RBC Auto-mCnc", Class: "HEM/BC", Units: "g/dL", Synonyms: "Mean corpuscular hemoglobin concentration"},
		{Code: "788-0", Component: "Erythrocyte distribution width", LongName: "Erythrocyte distribution width [Ratio] by Automated count", ShortName: "RDW RBC Auto-Rto", Class: "HEM/BC", Units: "%", Synonyms: "RDW;RDW-CV;Red cell distribution width"},
		{Code: "770-8", Component: "Neutrophils/100 leukocytes", LongName: "Neutrophils/100 leukocytes in Blood by Automated count", ShortName: "Neutrophils NFr Bld Auto", Class: "HEM/BC", Units: "%", Synonyms: "Neutrophils %;NEUT%;Neutrophils"},
		{Code: "736-9", Component: "Lymphocytes/100 leukocytes", LongName: "Lymphocytes/100 leukocytes in Blood by Automated count", ShortName: "Lymphocytes NFr Bld Auto", Class: "HEM/BC", Units: "%", Synonyms: "Lymphocytes %;LYMPH%;Lymphocytes"},
		{Code: "751-8", Component: "Neutrophils #", LongName: "Neutrophils [#/volume] in Blood by Automated count", ShortName: "Neutrophils # Bld Auto", Class: "HEM/BC", Units: "10*3/uL", Synonyms: "Neutrophils #;NEUT#;ANC;Absolute neutrophils;Absolute neutrophil count"},
		{Code: "731-0", Component: "Lymphocytes #", LongName: "Lymphocytes [#/volume] in Blood by Automated count", ShortName: "Lymphocytes # Bld Auto", Class: "HEM/BC", Units: "10*3/uL", Synonyms: "Lymphocytes #;LYMPH#;ALC;Absolute lymphocytes;Absolute lymphocyte count"},
		{Code: "43396-1", Component: "Cholesterol.non HDL", LongName: "Cholesterol non HDL [Mass/volume] in Serum or Plasma", ShortName: "NonHDLc SerPl-mCnc", Class: "CHEM", Units: "mg/dL", Synonyms: "Non-HDL cholesterol;Non-HDL-C;Non HDL"},
		{Code: "1968-7", Component: "Bilirubin.direct", LongName: "Bilirubin.direct [Mass/volume] in Serum or Plasma", ShortName: "Bilirub Direct SerPl-mCnc", Class: "CHEM", Units: "mg/dL", Synonyms: "DBIL;Direct bilirubin;Conjugated bilirubin"},
		{Code: "4537-7", Component: "Erythrocyte sedimentation rate", LongName: "Erythrocyte sedimentation rate by Westergren method", ShortName: "ESR Bld Qn Westrgrn", Class: "HEM/BC", Units: "mm/h", Synonyms: "ESR;Sed rate;SR"},
		{Code: "2345-7", Component: "Glucose", LongName: "Glucose [Mass/volume] in Serum or Plasma", ShortName: "Glucose SerPl-mCnc", Class: "CHEM", Units: "mg/dL", Synonyms: "GLU;Blood sugar;Гликемија;Глукоза"},
		{Code: "4548-4", Component: "Hemoglobin A1c/Hemoglobin.total", LongName: "Hemoglobin A1c/Hemoglobin.total in Blood", ShortName: "Hgb A1c MFr Bld", Class: "CHEM", Units: "%", Synonyms: "HbA1c;A1c;Hemoglobin A1c;Glycated hemoglobin;Glycosylated hemoglobin"},
		{Code: "2093-3", Component: "Cholesterol", LongName: "Cholesterol [Mass/volume] in Serum or Plasma", ShortName: "Cholest SerPl-mCnc", Class: "CHEM", Units: "mg/dL", Synonyms: "CHOL;Total cholesterol;Холестерол"},
		{Code: "2085-9", Component: "Cholesterol.in HDL", LongName: "Cholesterol in HDL [Mass/volume] in Serum or Plasma", ShortName: "HDLc SerPl-mCnc", Class: "CHEM", Units: "mg/dL", Synonyms: "HDL;HDL cholesterol;HDL-C"},
		{Code: "2089-1", Component: "Cholesterol.in LDL", LongName: "Cholesterol in LDL [Mass/volume] in Serum or Plasma", ShortName: "LDLc SerPl-mCnc", Class: "CHEM", Units: "mg/dL", Synonyms: "LDL;LDL cholesterol;LDL-C"},
		{Code: "2571-8", Component: "Triglyceride", LongName: "Triglyceride [Mass/volume] in Serum or Plasma", ShortName: "Trigl SerPl-mCnc", Class: "CHEM", Units: "mg/dL", Synonyms: "TG;TRIG;Triglycerides;Триглицериди"},
		{Code: "2160-0", Component: "Creatinine", LongName: "Creatinine [Mass/volume] in Serum or Plasma", ShortName: "Creat SerPl-mCnc", Class: "CHEM", Units: "mg/dL", Synonyms: "CREA;Creat;Креатинин"},
		{Code: "3094-0", Component: "Urea nitrogen", LongName: "Urea nitrogen [Mass/volume] in Serum or Plasma", ShortName: "BUN SerPl-mCnc", Class: "CHEM", Units: "mg/dL", Synonyms: "BUN;Blood urea nitrogen;Urea"},
		{Code: "3084-1", Component: "Urate", LongName: "Urate [Mass/volume] in Serum or Plasma", ShortName: "Urate SerPl-mCnc", Class: "CHEM", Units: "mg/dL", Synonyms: "Uric acid;UA"},
		{Code: "1742-6", Component: "Alanine aminotransferase", LongName: "Alanine aminotransferase [Enzymatic activity/volume] in Serum or Plasma", ShortName: "ALT SerPl-cCnc", Class: "CHEM", Units: "U/L", Synonyms: "ALT;SGPT;GPT;ALAT"},
		{Code: "1920-8", Component: "Aspartate aminotransferase", LongName: "Aspartate aminotransferase [Enzymatic activity/volume] in Serum or Plasma", ShortName: "AST SerPl-cCnc", Class: "CHEM", Units: "U/L", Synonyms: "AST;SGOT;GOT;ASAT"},
		{Code: "2324-2", Component: "Gamma glutamyl transferase", LongName: "Gamma glutamyl transferase [Enzymatic activity/volume] in Serum or Plasma", ShortName: "GGT SerPl-cCnc", Class: "CHEM", Units: "U/L", Synonyms: "GGT;Gamma GT;GGTP"},
		{Code: "6768-6", Component: "Alkaline phosphatase", LongName: "Alkaline phosphatase [Enzymatic activity/volume] in Serum or Plasma", ShortName: "ALP SerPl-cCnc", Class: "CHEM", Units: "U/L", Synonyms: "ALP;Alk phos"},
		{Code: "1975-2", Component: "Bilirubin", LongName: "Bilirubin.total [Mass/volume] in Serum or Plasma", ShortName: "Bilirub SerPl-mCnc", Class: "CHEM", Units: "mg/dL", Synonyms: "TBIL;Total bilirubin;Билирубин"},
		{Code: "2951-2", Component: "Sodium", LongName: "Sodium [Moles/volume] in Serum or Plasma", ShortName: "Sodium SerPl-sCnc", Class: "CHEM", Units: "mmol/L", Synonyms: "Na;Na+"},
		{Code: "2823-3", Component: "Potassium", LongName: "Potassium [Moles/volume] in Serum or Plasma", ShortName: "Potassium SerPl-sCnc", Class: "CHEM", Units: "mmol/L", Synonyms: "K;K+"},
		{Code: "17861-6", Component: "Calcium", LongName: "Calcium [Mass/volume] in Serum or Plasma", ShortName: "Calcium SerPl-mCnc", Class: "CHEM", Units: "mg/dL", Synonyms: "Ca"},
		{Code: "2498-4", Component: "Iron", LongName: "Iron [Mass/volume] in Serum or Plasma", ShortName: "Iron SerPl-mCnc", Class: "CHEM", Units: "ug/dL", Synonyms: "Fe;Serum iron;Железо"},
		{Code: "2276-4", Component: "Ferritin", LongName: "Ferritin [Mass/volume] in Serum or Plasma", ShortName: "Ferritin SerPl-mCnc", Class: "CHEM", Units: "ng/mL", Synonyms: "FERR;Феритин"},
		{Code: "1988-5", Component: "C reactive protein", LongName: "C reactive protein [Mass/volume] in Serum or Plasma", ShortName: "CRP SerPl-mCnc", Class: "CHEM", Units: "mg/L", Synonyms: "CRP;C-reactive protein"},
		{Code: "3016-3", Component: "Thyrotropin", LongName: "Thyrotropin [Units/volume] in Serum or Plasma", ShortName: "TSH SerPl-aCnc", Class: "CHEM", Units: "m[IU]/L", Synonyms: "TSH;Thyroid stimulating hormone"},
	}
}
