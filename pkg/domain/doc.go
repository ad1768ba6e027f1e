/*
Package domain contains the core types shared by the harness packages.

It is kept free of I/O so that the template engine, the build orchestrator
and the loader can exchange values without depending on each other.

# Key Entities

  - ABI: the compatibility mode a module is built for, and the kind of
    artifact that mode is loaded from.
  - Module / ModuleSpec: a live module handle and where the host found it.
  - LifecycleHooks: callbacks fired after expand, build and load.
  - Errors: sentinels for each error kind (authoring, collision, build,
    load invariant) plus BuildError and InvariantError.
*/
package domain
